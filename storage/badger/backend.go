package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
//
// Writes are serialized by a single write lock. WithSnapshot takes the read
// side of the same lock, so a reader holding it sees no commits until it
// returns.
type Backend struct {
	db     *badger.DB
	mu     sync.RWMutex
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// txKey carries the active read-write transaction of WithTransaction.
type txKey struct{}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger *slog.Logger
}

// WithBackendLogger routes the backend's own logging and BadgerDB's internal
// logging to logger. A nil logger keeps slog.Default().
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool, backendOpts ...BackendOption) (*Backend, error) {
	cfg := backendOptions{logger: slog.Default()}
	for _, opt := range backendOpts {
		opt(&cfg)
	}

	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: cfg.logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: cfg.logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes fn within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction under the write lock
// and commits it when fn returns nil.
// If ctx carries a transaction opened by WithTransaction, fn joins it and
// the outer call decides whether to commit.
func (b *Backend) WithTx(ctx context.Context, fn func(tx *badger.Txn) error, isWrite bool) error {
	if tx, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return wrapError(fn(tx))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return wrapError(storage.ErrStorageClosed)
	}

	if isWrite {
		b.mu.Lock()
		defer b.mu.Unlock()
	}

	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		if isWrite {
			b.logger.Debug("write transaction discarded", "err", err)
		}
		return wrapError(err)
	}
	if isWrite {
		return b.commit(tx)
	}
	return nil
}

// WithTransaction executes a function within a single read-write transaction.
// Repository calls made with the context passed to fn share that transaction;
// nothing they write is visible until fn returns nil and the commit succeeds.
// Implements storage.Repository interface.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*badger.Txn); ok {
		return fn(ctx)
	}
	if b.db.IsClosed() {
		return wrapError(storage.ErrStorageClosed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.db.NewTransaction(true)
	defer tx.Discard()
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		b.logger.Debug("write transaction discarded", "err", err)
		return err
	}
	return b.commit(tx)
}

func (b *Backend) commit(tx *badger.Txn) error {
	if err := tx.Commit(); err != nil {
		b.logger.Error("transaction commit failed", "err", err)
		return wrapError(err)
	}
	return nil
}

// WithSnapshot runs fn while holding the read lock.
// fn must not write through this backend.
// Implements storage.Repository interface.
func (b *Backend) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(ctx)
}

// wrapError marks engine-level failures as storage errors.
// Domain errors and context errors pass through unchanged.
func wrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrStorage),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrInvalidQuery),
		errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrStorage, err)
}
