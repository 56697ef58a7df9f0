// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// ProcessorType names the reindex checkpoint.
const ProcessorType = "reindex"

// Config holds configuration for the reindex operation.
type Config struct {
	// BatchSize is the number of documents to rebuild in each transaction
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a failed batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Resume continues after the last saved checkpoint instead of starting over
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 1000,
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
	}
}

// Observer is notified after each rebuilt batch.
type Observer interface {
	ObserveReindex(docs int)
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// WithObserver sets an Observer notified after each batch.
func WithObserver(observer Observer) Option {
	return func(r *Reindexer) {
		r.observer = observer
	}
}

// Reindexer orchestrates the rebuild of all derived indexes in a database.
type Reindexer struct {
	repo        storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *DocumentIterator
	observer    Observer
	logger      *slog.Logger
}

// NewReindexer creates a new reindexer.
// checkpoints may be nil, in which case no progress is persisted.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	repo storage.DocumentRepository,
	checkpoints storage.CheckpointRepository,
	config *Config,
	progress io.Writer,
	opts ...Option,
) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reindexer{
		repo:        repo,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(repo, config.MaxRetries, config.RetryDelay),
		iterator:    NewDocumentIterator(repo, config.BatchSize),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run rebuilds the indexes of every document, in ID order.
// A checkpoint holding the last rebuilt ID is saved after each batch and
// cleared when the run completes. Returns the number of documents rebuilt.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	total, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in database (0 documents)\n")
		return 0, nil
	}

	var afterID core.ID
	if r.config.Resume && r.checkpoints != nil {
		checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
		if err != nil {
			return 0, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if checkpoint != nil {
			afterID = checkpoint.LastID
			r.logger.Info("resuming reindex", "after", afterID)
		}
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d documents (batch size: %d)\n",
		total, r.config.BatchSize)

	// Initialize progress tracker
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, afterID, func(docs []*core.Document) error {
		rebuilt, err := r.processor.Process(ctx, docs)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += rebuilt
		if err := r.saveCheckpoint(ctx, docs[len(docs)-1].Id); err != nil {
			return err
		}

		tracker.Update(processed)
		if r.observer != nil {
			r.observer.ObserveReindex(rebuilt)
		}
		return nil
	})
	if err != nil {
		return processed, err
	}

	// Completed runs start over next time
	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, ProcessorType); err != nil {
			return processed, fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Rebuilt %d documents in %v (%.1f documents/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())
	r.logger.Info("reindex complete", "count", processed)

	return processed, nil
}

func (r *Reindexer) saveCheckpoint(ctx context.Context, lastID core.ID) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastID:        lastID,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
