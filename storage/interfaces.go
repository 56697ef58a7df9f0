package storage

import (
	"context"

	"github.com/poiesic/sift/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// WithSnapshot executes fn while no write can commit.
	// Every read issued from fn, including reads from other goroutines started
	// by fn, observes the same committed state.
	WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository holds canonical documents together with the three
// derived indexes: word blobs, token sets and filter tuples.
type DocumentRepository interface {
	Repository

	// AddDocuments stores new documents and all their index entries in one
	// transaction. Returns ErrDuplicateKey if any ID is already present, in
	// which case nothing is written.
	AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) ([]*core.Document, error)

	// UpdateDocuments overwrites existing documents and replaces their index
	// entries in one transaction.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.IndexedDocument) ([]*core.Document, error)

	// DeleteDocuments removes documents by their IDs.
	// Also removes associated index entries.
	// Returns ErrNotFound if any document doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Missing IDs are simply absent from the result.
	GetDocuments(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Document, error)

	// ListDocuments returns up to limit documents with IDs greater than
	// afterID, in ascending ID order.
	ListDocuments(ctx context.Context, afterID core.ID, limit int) ([]*core.Document, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// GetWordsRecord retrieves the word blob of a document.
	// Returns ErrNotFound if the record doesn't exist.
	GetWordsRecord(ctx context.Context, id core.ID) (*core.WordsRecord, error)

	// GetTokenRecord retrieves the token set of a document.
	// Returns ErrNotFound if the record doesn't exist.
	GetTokenRecord(ctx context.Context, id core.ID) (*core.TokenRecord, error)

	// ForEachWordsRecord calls fn for every word blob in ascending ID order,
	// within a single read transaction. Iteration stops on the first error.
	ForEachWordsRecord(ctx context.Context, fn func(record *core.WordsRecord) error) error

	// FindByToken returns the IDs of documents containing exactly token.
	FindByToken(ctx context.Context, token string) ([]core.ID, error)

	// FindByTokenPrefix returns the IDs of documents containing any token
	// that starts with prefix. Each ID appears at most once.
	FindByTokenPrefix(ctx context.Context, prefix string) ([]core.ID, error)

	// FindByFilters returns the IDs of documents whose filter tuple matches.
	// A non-empty value must match its position exactly; an empty value
	// matches anything at its position. The stored tuple must have the same
	// number of positions as filters.
	FindByFilters(ctx context.Context, filters []string) ([]core.ID, error)
}

// CheckpointRepository persists processor progress.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}
