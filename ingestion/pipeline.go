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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// DefaultBatchSize is the number of documents committed per transaction by IngestBatch.
const DefaultBatchSize = 256

// Operation names reported to a Recorder.
const (
	OpIngest   = "ingest"
	OpReingest = "reingest"
	OpDelete   = "delete"
	OpBatch    = "batch"
)

// Recorder observes completed write operations.
type Recorder interface {
	// ObserveWrite is called once per storage write with the number of
	// documents it covered and its outcome.
	ObserveWrite(op string, docs int, elapsed time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveWrite(string, int, time.Duration, error) {}

// Pipeline derives index records for documents and writes them atomically.
type Pipeline struct {
	repository storage.DocumentRepository
	pool       *ants.Pool
	batchSize  int
	recorder   Recorder
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by IngestBatch.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents IngestBatch commits per transaction.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithRecorder sets a Recorder notified after every write.
func WithRecorder(recorder Recorder) Option {
	return func(p *Pipeline) error {
		if recorder == nil {
			recorder = noopRecorder{}
		}
		p.recorder = recorder
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.DocumentRepository, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		repository: repository,
		pool:       pool,
		batchSize:  DefaultBatchSize,
		recorder:   noopRecorder{},
		logger:     slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest validates doc, derives its index records and stores all of them in
// one transaction. Returns core.ErrConflict if the ID is already present.
func (p *Pipeline) Ingest(ctx context.Context, doc *core.Document) (core.ID, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return 0, err
	}

	start := time.Now()
	_, err := p.repository.AddDocuments(ctx, core.NewIndexedDocument(doc))
	p.recorder.ObserveWrite(OpIngest, 1, time.Since(start), err)
	if err != nil {
		p.logger.Debug("error ingesting document", "id", doc.Id, "err", err)
		return 0, err
	}
	return doc.Id, nil
}

// Reingest replaces an existing document and its index records in one
// transaction. The previous token set is removed, not kept alongside the new
// one. Returns core.ErrNotFound if the ID is unknown.
func (p *Pipeline) Reingest(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	start := time.Now()
	_, err := p.repository.UpdateDocuments(ctx, core.NewIndexedDocument(doc))
	p.recorder.ObserveWrite(OpReingest, 1, time.Since(start), err)
	if err != nil {
		p.logger.Debug("error reingesting document", "id", doc.Id, "err", err)
	}
	return err
}

// Delete removes documents and all their index records in one transaction.
// Returns core.ErrNotFound if any ID is unknown, in which case nothing is removed.
func (p *Pipeline) Delete(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	err := p.repository.DeleteDocuments(ctx, ids...)
	p.recorder.ObserveWrite(OpDelete, len(ids), time.Since(start), err)
	if err != nil {
		p.logger.Debug("error deleting documents", "count", len(ids), "err", err)
	}
	return err
}

// IngestBatch ingests docs in chunks of the configured batch size. Chunks are
// derived and written concurrently on the worker pool; each chunk commits
// atomically or not at all. Returns the number of documents committed and
// the errors of every failed chunk joined together.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []*core.Document) (int, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		errs      []error
	)

	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for start := 0; start < len(docs); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}

		end := min(start+p.batchSize, len(docs))
		chunk := docs[start:end]
		first := start

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			n, err := p.ingestChunk(ctx, chunk)
			if err != nil {
				p.logger.Warn("error ingesting batch", "offset", first, "count", len(chunk), "err", err)
				fail(fmt.Errorf("documents %d-%d: %w", first, first+len(chunk)-1, err))
				return
			}
			mu.Lock()
			committed += n
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			if errors.Is(submitErr, ants.ErrPoolClosed) {
				submitErr = ErrPipelineReleased
			}
			fail(submitErr)
			break
		}
	}

	wg.Wait()
	p.logger.Debug("batch ingestion finished", "count", committed, "failed", len(errs))
	return committed, errors.Join(errs...)
}

// ingestChunk validates and derives one chunk and writes it in a single transaction.
func (p *Pipeline) ingestChunk(ctx context.Context, chunk []*core.Document) (int, error) {
	entries := make([]*core.IndexedDocument, len(chunk))
	for i, doc := range chunk {
		if err := core.ValidateDocument(doc); err != nil {
			return 0, err
		}
		entries[i] = core.NewIndexedDocument(doc)
	}

	start := time.Now()
	added, err := p.repository.AddDocuments(ctx, entries...)
	p.recorder.ObserveWrite(OpBatch, len(entries), time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return len(added), nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
