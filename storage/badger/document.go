package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// contextCheckInterval is how many records a scan reads between context checks.
const contextCheckInterval = 1024

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// WithSnapshot delegates to the backend.
func (r *DocumentRepository) WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithSnapshot(ctx, fn)
}

// AddDocuments stores new documents with their word blob, token set, token
// index entries and filter index entry.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) ([]*core.Document, error) {
	added := make([]*core.Document, 0, len(docs))
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, entry := range docs {
			doc := entry.Document
			key := makeDocumentKey(doc.Id)

			exists, err := keyExists(tx, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: document %d", storage.ErrDuplicateKey, doc.Id)
			}

			// Store primary record
			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}

			if err := r.putWordsRecord(tx, &entry.Words); err != nil {
				return err
			}
			if err := r.putTokenRecord(tx, &entry.Tokens); err != nil {
				return err
			}
			if err := r.updateTokenIndex(tx, &entry.Tokens); err != nil {
				return err
			}
			if err := r.updateFilterIndex(tx, doc); err != nil {
				return err
			}
			added = append(added, doc)
		}
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateDocuments overwrites existing documents and replaces their derived
// records. The previous token set is removed from the token index before the
// new one is written, so a document has exactly one current token set.
// Documents whose words digest is unchanged keep their token index entries.
func (r *DocumentRepository) UpdateDocuments(ctx context.Context, docs ...*core.IndexedDocument) ([]*core.Document, error) {
	updated := make([]*core.Document, 0, len(docs))
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, entry := range docs {
			doc := entry.Document

			// Read old record to detect changes
			old, err := readDocument(tx, doc.Id)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: document %d", storage.ErrNotFound, doc.Id)
			}

			if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
				return err
			}

			// The words digest decides whether the token index is rewritten.
			// An equal digest keeps the stored words and tokens as they are.
			oldWords, err := readWordsRecord(tx, doc.Id)
			if err != nil {
				return err
			}
			if oldWords == nil || oldWords.Digest != entry.Words.Digest {
				oldTokens, err := readTokenRecord(tx, doc.Id)
				if err != nil {
					return err
				}
				if oldTokens != nil {
					if err := r.deleteTokenIndex(tx, oldTokens); err != nil {
						return err
					}
				}
				if err := r.putWordsRecord(tx, &entry.Words); err != nil {
					return err
				}
				if err := r.putTokenRecord(tx, &entry.Tokens); err != nil {
					return err
				}
				if err := r.updateTokenIndex(tx, &entry.Tokens); err != nil {
					return err
				}
			}

			// Update filter index if filters changed
			if !slices.Equal(old.Filters, doc.Filters) {
				if err := tx.Delete(makeFilterKey(old.Filters, old.Id)); err != nil {
					return err
				}
				if err := r.updateFilterIndex(tx, doc); err != nil {
					return err
				}
			}
			updated = append(updated, doc)
		}
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDocuments removes documents and every index entry derived from them.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
			}

			tokens, err := readTokenRecord(tx, id)
			if err != nil {
				return err
			}
			if tokens != nil {
				if err := r.deleteTokenIndex(tx, tokens); err != nil {
					return err
				}
			}

			for _, key := range [][]byte{
				makeFilterKey(doc.Filters, id),
				makeTokenRecordKey(id),
				makeWordsKey(id),
				makeDocumentKey(id),
			} {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	}, true)
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) (map[core.ID]*core.Document, error) {
	result := make(map[core.ID]*core.Document, len(ids))
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			if _, seen := result[id]; seen {
				continue
			}
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result[id] = doc
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListDocuments returns up to limit documents with IDs greater than afterID.
func (r *DocumentRepository) ListDocuments(ctx context.Context, afterID core.ID, limit int) ([]*core.Document, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if afterID == ^core.ID(0) {
		return nil, nil
	}

	var results []*core.Document
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeDocumentKey(afterID + 1)); iter.Valid() && len(results) < limit; iter.Next() {
			var doc *core.Document
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, doc)
		}
		return nil
	}, false)
	return results, err
}

// CountDocuments returns the number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// GetWordsRecord retrieves the word blob of a document.
func (r *DocumentRepository) GetWordsRecord(ctx context.Context, id core.ID) (*core.WordsRecord, error) {
	var result *core.WordsRecord
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readWordsRecord(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: words record %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetTokenRecord retrieves the token set of a document.
func (r *DocumentRepository) GetTokenRecord(ctx context.Context, id core.ID) (*core.TokenRecord, error) {
	var result *core.TokenRecord
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readTokenRecord(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: token record %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// ForEachWordsRecord calls fn for every word blob in ascending ID order.
func (r *DocumentRepository) ForEachWordsRecord(ctx context.Context, fn func(record *core.WordsRecord) error) error {
	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(wordsPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seen := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if seen%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			seen++

			var record *core.WordsRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalWordsRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// FindByToken returns the IDs of documents containing exactly token.
func (r *DocumentRepository) FindByToken(ctx context.Context, token string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		prefix := makePartialTokenKey(token)
		return scanKeys(tx, prefix, func(key []byte) error {
			// Longer keys belong to tokens that embed a zero byte
			if len(key) != len(prefix)+idSize {
				return nil
			}
			id, err := idFromKey(key)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
	}, false)
	return ids, err
}

// FindByTokenPrefix returns the IDs of documents containing any token that
// starts with prefix.
func (r *DocumentRepository) FindByTokenPrefix(ctx context.Context, prefix string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		seen := make(map[core.ID]struct{})
		return scanKeys(tx, makeTokenPrefixKey(prefix), func(key []byte) error {
			id, err := idFromKey(key)
			if err != nil {
				return err
			}
			if _, dup := seen[id]; dup {
				return nil
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			return nil
		})
	}, false)
	return ids, err
}

// FindByFilters scans the filter index between a lower and an upper bound
// tuple. Exact values bound their position on both sides; empty values are
// wildcards bounded by the minimum and maximum sentinels. Keys inside the
// range are then checked position by position, since a wildcard before an
// exact position widens the bytewise range past that position.
func (r *DocumentRepository) FindByFilters(ctx context.Context, filters []string) ([]core.ID, error) {
	for i, value := range filters {
		if value == "" {
			continue
		}
		if err := core.ValidateFilterValue(value); err != nil {
			return nil, fmt.Errorf("%w: filter %d: %w", storage.ErrInvalidQuery, i, err)
		}
	}

	lower := make([]filterBound, len(filters))
	upper := make([]filterBound, len(filters))
	for i, value := range filters {
		if value == "" {
			lower[i] = filterBound{sentinel: minKeyBound}
			upper[i] = filterBound{sentinel: maxKeyBound}
			continue
		}
		lower[i] = filterBound{value: value}
		upper[i] = filterBound{value: value}
	}
	lowerKey := makeFilterBoundKey(lower)
	upperKey := makeFilterBoundKey(upper)

	var ids []core.ID
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filterIndexPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(lowerKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()

			// Inclusive upper bound on the tuple part of the key
			head := key
			if len(head) > len(upperKey) {
				head = head[:len(upperKey)]
			}
			if bytes.Compare(head, upperKey) > 0 {
				break
			}

			tuple, id, err := decodeFilterKey(key)
			if err != nil {
				return err
			}
			if matchesFilters(tuple, filters) {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	return ids, err
}

// matchesFilters reports whether a stored tuple satisfies a filter query.
func matchesFilters(tuple, filters []string) bool {
	if len(tuple) != len(filters) {
		return false
	}
	for i, value := range filters {
		if value != "" && tuple[i] != value {
			return false
		}
	}
	return true
}

// Helper methods

func (r *DocumentRepository) putWordsRecord(tx *badger.Txn, record *core.WordsRecord) error {
	return tx.Set(makeWordsKey(record.Id), storage.MarshalWordsRecord(record))
}

func (r *DocumentRepository) putTokenRecord(tx *badger.Txn, record *core.TokenRecord) error {
	return tx.Set(makeTokenRecordKey(record.Id), storage.MarshalTokenRecord(record))
}

// updateTokenIndex adds token index entries for a token set.
func (r *DocumentRepository) updateTokenIndex(tx *badger.Txn, record *core.TokenRecord) error {
	value := storage.MarshalID(record.Id)
	for _, token := range record.Tokens {
		if err := tx.Set(makeTokenKey(token, record.Id), value); err != nil {
			return err
		}
	}
	return nil
}

// deleteTokenIndex removes token index entries for a token set.
func (r *DocumentRepository) deleteTokenIndex(tx *badger.Txn, record *core.TokenRecord) error {
	for _, token := range record.Tokens {
		if err := tx.Delete(makeTokenKey(token, record.Id)); err != nil {
			return err
		}
	}
	return nil
}

// updateFilterIndex adds the filter index entry for a document.
func (r *DocumentRepository) updateFilterIndex(tx *badger.Txn, doc *core.Document) error {
	return tx.Set(makeFilterKey(doc.Filters, doc.Id), storage.MarshalID(doc.Id))
}

// scanKeys calls fn with every key starting with prefix.
// Keys are only valid for the duration of the call.
func scanKeys(tx *badger.Txn, prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(iter.Item().Key()); err != nil {
			return err
		}
	}
	return nil
}

// keyExists reports whether key is present in the transaction's view.
func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// readValue reads and decodes a value, returning nil if the key is absent.
func readValue[T any](tx *badger.Txn, key []byte, decode func([]byte) (*T, error)) (*T, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result *T
	err = item.Value(func(val []byte) error {
		var decodeErr error
		result, decodeErr = decode(val)
		return decodeErr
	})
	return result, err
}

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	return readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
}

func readWordsRecord(tx *badger.Txn, id core.ID) (*core.WordsRecord, error) {
	return readValue(tx, makeWordsKey(id), storage.UnmarshalWordsRecord)
}

func readTokenRecord(tx *badger.Txn, id core.ID) (*core.TokenRecord, error) {
	return readValue(tx, makeTokenRecordKey(id), storage.UnmarshalTokenRecord)
}
