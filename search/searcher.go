package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
	"golang.org/x/sync/errgroup"
)

// Defaults for result size limits.
const (
	DefaultLimit = 100
	MaxLimit     = 5000
)

// Mode selects a search algorithm.
type Mode string

const (
	// ModeScan checks every word blob.
	ModeScan Mode = "scan"
	// ModeIndexed uses the token and filter indexes.
	ModeIndexed Mode = "indexed"
)

// ParseMode converts a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(name)) {
	case ModeScan:
		return ModeScan, nil
	case ModeIndexed:
		return ModeIndexed, nil
	}
	return "", fmt.Errorf("%w: %w %q", core.ErrInvalidQuery, ErrUnknownMode, name)
}

// Query describes one search.
type Query struct {
	// Mode defaults to ModeScan when empty.
	Mode Mode
	// Prefixes are matched case-insensitively. Empty strings are ignored.
	Prefixes []string
	// Filters restricts results to documents whose filter tuple matches.
	// An empty string matches any value at its position. Nil means no restriction.
	Filters []string
	// Limit caps the number of results. Zero or less means the default limit.
	Limit int
}

// Searcher runs prefix queries against a document repository.
type Searcher struct {
	repository   storage.DocumentRepository
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaultLimit sets the limit used when a query does not give one.
// Default is DefaultLimit.
func WithDefaultLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit < 1 {
			return fmt.Errorf("default limit must be positive, got %d", limit)
		}
		s.defaultLimit = limit
		return nil
	}
}

// WithMaxLimit sets the largest limit a query may ask for.
// Zero removes the cap. Default is MaxLimit.
func WithMaxLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit < 0 {
			return fmt.Errorf("max limit must not be negative, got %d", limit)
		}
		s.maxLimit = limit
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(repository storage.DocumentRepository, opts ...Option) (*Searcher, error) {
	if repository == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	s := &Searcher{
		repository:   repository,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		logger:       slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.maxLimit > 0 && s.defaultLimit > s.maxLimit {
		return nil, fmt.Errorf("default limit %d exceeds max limit %d", s.defaultLimit, s.maxLimit)
	}

	return s, nil
}

// Search runs q and returns ranked results.
func (s *Searcher) Search(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, q, nil)
}

// Scan runs a linear scan over every word blob.
func (s *Searcher) Scan(ctx context.Context, prefixes, filters []string, limit int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, Query{Mode: ModeScan, Prefixes: prefixes, Filters: filters, Limit: limit}, nil)
}

// Indexed runs an index-assisted search over the token index.
func (s *Searcher) Indexed(ctx context.Context, prefixes, filters []string, limit int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, Query{Mode: ModeIndexed, Prefixes: prefixes, Filters: filters, Limit: limit}, nil)
}

// SearchWithMonitor runs q with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if q.Mode == "" {
		q.Mode = ModeScan
	}
	// Rejected before Start so monitors only ever see known modes.
	if q.Mode != ModeScan && q.Mode != ModeIndexed {
		err := fmt.Errorf("%w: %w %q", core.ErrInvalidQuery, ErrUnknownMode, q.Mode)
		s.logger.Debug("search rejected", "err", err)
		return nil, err
	}
	monitor.Start(q)

	results, err := s.search(ctx, q, monitor)
	if err != nil {
		s.logger.Error("search failed", "mode", q.Mode, "err", err)
		monitor.Failed(err)
		return nil, err
	}

	s.logger.Debug("search finished", "mode", q.Mode, "count", len(results))
	monitor.Finish(results)
	return results, nil
}

func (s *Searcher) search(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	limit, err := s.resolveLimit(q.Limit)
	if err != nil {
		return nil, err
	}

	// No prefixes match nothing
	prefixes := normalizePrefixes(q.Prefixes)
	if len(prefixes) == 0 {
		return []*core.SearchResult{}, nil
	}

	var results []*core.SearchResult
	err = s.repository.WithSnapshot(ctx, func(ctx context.Context) error {
		var scores map[core.ID]int
		var err error
		if q.Mode == ModeIndexed {
			scores, err = s.scoreIndexed(ctx, prefixes, q.Filters, monitor)
		} else {
			scores, err = s.scoreScan(ctx, prefixes, q.Filters, monitor)
		}
		if err != nil {
			return err
		}
		monitor.AfterScoring(len(scores))

		results, err = s.hydrate(ctx, rank(scores, limit), monitor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// resolveLimit applies the default and maximum limits.
func (s *Searcher) resolveLimit(limit int) (int, error) {
	if limit <= 0 {
		return s.defaultLimit, nil
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		return 0, fmt.Errorf("%w: %w: %d > %d", core.ErrInvalidQuery, ErrLimitTooLarge, limit, s.maxLimit)
	}
	return limit, nil
}

// scoreScan weighs every word blob that passes the filter set.
func (s *Searcher) scoreScan(ctx context.Context, prefixes, filters []string, monitor SearchMonitor) (map[core.ID]int, error) {
	allowed, err := s.ResolveFilteredIDs(ctx, filters)
	if err != nil {
		return nil, err
	}
	if allowed != nil {
		monitor.AfterFilterResolution(len(allowed))
	}

	scores := make(map[core.ID]int)
	err = s.repository.ForEachWordsRecord(ctx, func(record *core.WordsRecord) error {
		if allowed != nil {
			if _, ok := allowed[record.Id]; !ok {
				return nil
			}
		}
		if weight := scoreBlob(record.Blob, prefixes); weight > 0 {
			scores[record.Id] = weight
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// scoreIndexed looks up every prefix as an exact token and as a token prefix,
// and resolves the filter set at the same time.
func (s *Searcher) scoreIndexed(ctx context.Context, prefixes, filters []string, monitor SearchMonitor) (map[core.ID]int, error) {
	exact := make([][]core.ID, len(prefixes))
	partial := make([][]core.ID, len(prefixes))
	var allowed map[core.ID]struct{}

	g, gctx := errgroup.WithContext(ctx)
	for i, prefix := range prefixes {
		g.Go(func() error {
			ids, err := s.repository.FindByToken(gctx, prefix)
			exact[i] = ids
			return err
		})
		g.Go(func() error {
			ids, err := s.repository.FindByTokenPrefix(gctx, prefix)
			partial[i] = ids
			return err
		})
	}
	if filters != nil {
		g.Go(func() error {
			var err error
			allowed, err = s.ResolveFilteredIDs(gctx, filters)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if allowed != nil {
		monitor.AfterFilterResolution(len(allowed))
	}

	scores := make(map[core.ID]int)
	add := func(ids []core.ID, weight int) {
		for _, id := range ids {
			if allowed != nil {
				if _, ok := allowed[id]; !ok {
					continue
				}
			}
			scores[id] += weight
		}
	}
	for i := range prefixes {
		add(exact[i], ExactWeight)
		add(partial[i], PartialWeight)
	}
	return scores, nil
}

// hydrate loads ranked documents. IDs without a stored document are dropped.
func (s *Searcher) hydrate(ctx context.Context, ranked []scoredID, monitor SearchMonitor) ([]*core.SearchResult, error) {
	results := make([]*core.SearchResult, 0, len(ranked))
	if len(ranked) == 0 {
		monitor.AfterHydration(0, 0)
		return results, nil
	}

	ids := make([]core.ID, len(ranked))
	for i, entry := range ranked {
		ids[i] = entry.id
	}

	docs, err := s.repository.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}
	monitor.AfterHydration(len(ids), len(docs))

	for _, entry := range ranked {
		doc, ok := docs[entry.id]
		if !ok {
			s.logger.Debug("dropping stale index entry", "id", entry.id)
			continue
		}
		results = append(results, &core.SearchResult{
			Document: doc,
			Weight:   entry.weight,
		})
	}
	return results, nil
}

// ResolveFilteredIDs returns the IDs of documents whose filter tuple matches
// filters. Nil filters mean no constraint and yield a nil set.
func (s *Searcher) ResolveFilteredIDs(ctx context.Context, filters []string) (map[core.ID]struct{}, error) {
	if filters == nil {
		return nil, nil
	}

	ids, err := s.repository.FindByFilters(ctx, filters)
	if err != nil {
		return nil, err
	}

	allowed := make(map[core.ID]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return allowed, nil
}
