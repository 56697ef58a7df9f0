package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// BatchProcessor rebuilds the index records of a batch of documents.
type BatchProcessor struct {
	repo           storage.DocumentRepository
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each batch transaction
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.DocumentRepository, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process re-derives the word blob, token set and filter entry of each
// document and replaces every stored index entry in one transaction.
// Documents are re-read inside the transaction, so a document removed since
// the batch was listed is skipped.
// Returns the number of documents rebuilt.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]core.ID, len(docs))
	for i, doc := range docs {
		ids[i] = doc.Id
	}

	rebuilt := 0
	err := RetryWithBackoff(ctx, func() error {
		return bp.repo.WithTransaction(ctx, func(ctx context.Context) error {
			current, err := bp.repo.GetDocuments(ctx, ids...)
			if err != nil {
				return err
			}

			present := make([]core.ID, 0, len(current))
			entries := make([]*core.IndexedDocument, 0, len(current))
			for _, id := range ids {
				doc, ok := current[id]
				if !ok {
					continue
				}
				present = append(present, id)
				entries = append(entries, core.NewIndexedDocument(doc))
			}
			if len(entries) == 0 {
				rebuilt = 0
				return nil
			}

			if err := bp.repo.DeleteDocuments(ctx, present...); err != nil {
				return err
			}
			added, err := bp.repo.AddDocuments(ctx, entries...)
			if err != nil {
				return err
			}
			rebuilt = len(added)
			return nil
		})
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return 0, fmt.Errorf("failed to rebuild batch after %d attempts: %w", bp.maxRetries, err)
	}
	return rebuilt, nil
}
