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
// Package sift is an embedded text-search engine over titled documents with
// categorical filters. An Engine owns the storage backend and wires the
// ingestion pipeline, the query engine and their metrics together.
package sift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/sift/config"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/reindex"
	"github.com/poiesic/sift/search"
	"github.com/poiesic/sift/storage"
	"github.com/poiesic/sift/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is an explicitly owned search engine instance.
type Engine struct {
	config         *config.Config
	backend        *badger.Backend
	docRepo        storage.DocumentRepository
	checkpointRepo storage.CheckpointRepository
	metrics        *metrics.Metrics
	pipeline       *ingestion.Pipeline
	searcher       *search.Searcher
	logger         *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	registerer prometheus.Registerer
	logger     *slog.Logger
}

// WithRegisterer registers the engine's collectors with reg.
// Without it the collectors are kept but never exported.
func WithRegisterer(reg prometheus.Registerer) EngineOption {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}

// WithEngineLogger sets the logger shared by every component.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine opens the database described by cfg and builds the engine.
// A nil cfg uses config.DefaultConfig.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	m, err := metrics.New(options.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	backend, err := badger.OpenBackend(cfg.DBPath, cfg.InMemory, badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, err
	}

	docRepo := badger.NewDocumentRepository(backend)
	checkpointRepo := badger.NewCheckpointRepository(backend)

	pipeline, err := ingestion.NewPipeline(docRepo,
		ingestion.WithPoolSize(cfg.Ingestion.PoolSize),
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithRecorder(m),
		ingestion.WithLogger(options.logger),
	)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(docRepo,
		search.WithDefaultLimit(cfg.Search.DefaultLimit),
		search.WithMaxLimit(cfg.EffectiveMaxLimit()),
		search.WithLogger(options.logger),
	)
	if err != nil {
		pipeline.Release()
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		config:         cfg,
		backend:        backend,
		docRepo:        docRepo,
		checkpointRepo: checkpointRepo,
		metrics:        m,
		pipeline:       pipeline,
		searcher:       searcher,
		logger:         options.logger,
	}, nil
}

// Close releases the worker pool and closes the database.
func (e *Engine) Close() error {
	e.pipeline.Release()

	if err := e.docRepo.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Ingest stores a new document and indexes it.
func (e *Engine) Ingest(ctx context.Context, doc *core.Document) (core.ID, error) {
	return e.pipeline.Ingest(ctx, doc)
}

// Reingest replaces an existing document and its index entries.
func (e *Engine) Reingest(ctx context.Context, doc *core.Document) error {
	return e.pipeline.Reingest(ctx, doc)
}

// Delete removes documents and their index entries.
func (e *Engine) Delete(ctx context.Context, ids ...core.ID) error {
	return e.pipeline.Delete(ctx, ids...)
}

// IngestBatch stores new documents in atomic chunks and returns how many
// were committed.
func (e *Engine) IngestBatch(ctx context.Context, docs []*core.Document) (int, error) {
	return e.pipeline.IngestBatch(ctx, docs)
}

// Search runs a query and returns the hydrated documents in rank order.
func (e *Engine) Search(ctx context.Context, mode search.Mode, prefixes, filters []string, limit int) ([]*core.Document, error) {
	results, err := e.Query(ctx, search.Query{
		Mode:     mode,
		Prefixes: prefixes,
		Filters:  filters,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*core.Document, len(results))
	for i, result := range results {
		docs[i] = result.Document
	}
	return docs, nil
}

// Query runs q and returns ranked results with their weights.
func (e *Engine) Query(ctx context.Context, q search.Query) ([]*core.SearchResult, error) {
	return e.searcher.SearchWithMonitor(ctx, q, e.metrics.SearchMonitor())
}

// ResolveFilteredIDs returns the IDs of documents matching filters.
// A nil filter list is no constraint and yields a nil set.
func (e *Engine) ResolveFilteredIDs(ctx context.Context, filters []string) (map[core.ID]struct{}, error) {
	return e.searcher.ResolveFilteredIDs(ctx, filters)
}

// Reindex rebuilds every derived index from the stored documents.
// Progress lines are written to progress; resume continues after the last
// saved checkpoint.
func (e *Engine) Reindex(ctx context.Context, progress io.Writer, resume bool) (int, error) {
	r, err := e.NewReindexer(progress, resume)
	if err != nil {
		return 0, err
	}
	return r.Run(ctx)
}

// NewReindexer creates a reindexer configured from the engine's settings.
func (e *Engine) NewReindexer(progress io.Writer, resume bool) (*reindex.Reindexer, error) {
	rc := e.config.Reindex
	return reindex.NewReindexer(e.docRepo, e.checkpointRepo, &reindex.Config{
		BatchSize:      rc.BatchSize,
		ReportInterval: rc.ReportInterval,
		MaxRetries:     rc.MaxRetries,
		RetryDelay:     rc.RetryDelay.Duration,
		Resume:         resume,
	}, progress, reindex.WithLogger(e.logger), reindex.WithObserver(e.metrics))
}

// Repository returns the document repository.
func (e *Engine) Repository() storage.DocumentRepository {
	return e.docRepo
}

// CheckpointRepository returns the checkpoint repository.
func (e *Engine) CheckpointRepository() storage.CheckpointRepository {
	return e.checkpointRepo
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// NewIngestionPipeline creates an additional pipeline over the engine's
// repository. The caller must Release it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(e.logger), ingestion.WithRecorder(e.metrics)}, opts...)
	return ingestion.NewPipeline(e.docRepo, opts...)
}

// NewSearcher creates an additional searcher over the engine's repository.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{
		search.WithDefaultLimit(e.config.Search.DefaultLimit),
		search.WithMaxLimit(e.config.EffectiveMaxLimit()),
		search.WithLogger(e.logger),
	}, opts...)
	return search.NewSearcher(e.docRepo, opts...)
}

// IsNotFound reports whether err means a document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}

// IsConflict reports whether err means a document ID is already taken.
func IsConflict(err error) bool {
	return errors.Is(err, core.ErrConflict)
}
