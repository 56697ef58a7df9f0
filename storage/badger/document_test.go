package badger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocumentRepository(t *testing.T) (storage.DocumentRepository, *Backend) {
	t.Helper()
	docRepo, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		docRepo.Close()
		backend.Close()
	})
	return docRepo, backend
}

func indexed(id core.ID, title, desc string, filters ...string) *core.IndexedDocument {
	return core.NewIndexedDocument(&core.Document{
		Id:      id,
		Title:   title,
		Desc:    desc,
		Filters: filters,
	})
}

func sortedIDs(ids []core.ID) []core.ID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func TestDocumentBasics(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	added, err := repo.AddDocuments(ctx, indexed(1, "Hello", "World", "f1"))
	require.NoError(t, err)
	require.Len(t, added, 1)

	doc, err := repo.GetDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Title)
	assert.Equal(t, "World", doc.Desc)
	assert.Equal(t, []string{"f1"}, doc.Filters)

	words, err := repo.GetWordsRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, " hello world ", words.Blob)

	tokens, err := repo.GetTokenRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, tokens.Tokens)

	count, err := repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentPayload(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	entry := indexed(5, "t", "d")
	entry.Document.Payload = []byte(`{"price":100}`)
	_, err := repo.AddDocuments(ctx, entry)
	require.NoError(t, err)

	doc, err := repo.GetDocument(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"price":100}`), doc.Payload)
}

func TestGetDocument_NotFound(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)

	_, err := repo.GetDocument(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddDocuments_DuplicateIsAtomic(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "first", "doc"))
	require.NoError(t, err)

	// The batch fails on its second entry; the first must not be written.
	_, err = repo.AddDocuments(ctx, indexed(2, "second", "doc"), indexed(1, "again", "doc"))
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = repo.GetDocument(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ids, err := repo.FindByToken(ctx, "second")
	require.NoError(t, err)
	assert.Empty(t, ids)

	doc, err := repo.GetDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Title)
}

func TestAddDocuments_DuplicateWithinBatch(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)

	_, err := repo.AddDocuments(context.Background(), indexed(3, "a", "b"), indexed(3, "c", "d"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	count, err := repo.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindByToken(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx,
		indexed(1, "Nissan", "best cars"),
		indexed(2, "nissans", "car"),
		indexed(3, "Toyota", "nissan rival"),
	)
	require.NoError(t, err)

	ids, err := repo.FindByToken(ctx, "nissan")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 3}, sortedIDs(ids))

	ids, err = repo.FindByToken(ctx, "nis")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFindByTokenPrefix(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx,
		indexed(1, "car cars", "carpet"),
		indexed(2, "scar", "cart"),
		indexed(3, "bus", "truck"),
	)
	require.NoError(t, err)

	ids, err := repo.FindByTokenPrefix(ctx, "car")
	require.NoError(t, err)
	// Document 1 matches three tokens but is reported once.
	assert.Equal(t, []core.ID{1, 2}, sortedIDs(ids))

	ids, err = repo.FindByTokenPrefix(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUpdateDocuments_ReplacesTokens(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "old title", "old words"))
	require.NoError(t, err)

	_, err = repo.UpdateDocuments(ctx, indexed(1, "new title", "fresh words"))
	require.NoError(t, err)

	ids, err := repo.FindByToken(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, ids, "stale tokens must not remain indexed")

	ids, err = repo.FindByToken(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)

	words, err := repo.GetWordsRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, " new title fresh words ", words.Blob)
}

func TestUpdateDocuments_SameDigestKeepsTokenIndex(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "Blue widget", "", "tools"))
	require.NoError(t, err)

	// Same digest, different blob and tokens: only the digest is compared,
	// so none of the derived records may be rewritten.
	entry := indexed(1, "Blue widget", "", "toys")
	entry.Words.Blob = " blue gizmo "
	entry.Tokens.Tokens = []string{"blue", "gizmo"}

	updated, err := repo.UpdateDocuments(ctx, entry)
	require.NoError(t, err)
	require.Len(t, updated, 1)

	ids, err := repo.FindByToken(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)

	ids, err = repo.FindByToken(ctx, "gizmo")
	require.NoError(t, err)
	assert.Empty(t, ids)

	words, err := repo.GetWordsRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, " blue widget ", words.Blob)

	tokens, err := repo.GetTokenRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"blue", "widget"}, tokens.Tokens)

	// The filter change still lands.
	ids, err = repo.FindByFilters(ctx, []string{"toys"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)
}

func TestUpdateDocuments_DigestChangeRewritesTokenIndex(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "Blue widget", ""))
	require.NoError(t, err)

	entry := indexed(1, "Blue widget", "")
	entry.Words.Digest++

	_, err = repo.UpdateDocuments(ctx, entry)
	require.NoError(t, err)

	words, err := repo.GetWordsRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entry.Words.Digest, words.Digest)

	ids, err := repo.FindByToken(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)
}

func TestUpdateDocuments_ReplacesFilters(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "a", "b", "x", "y"))
	require.NoError(t, err)

	_, err = repo.UpdateDocuments(ctx, indexed(1, "a", "b", "x", "z"))
	require.NoError(t, err)

	ids, err := repo.FindByFilters(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = repo.FindByFilters(ctx, []string{"x", "z"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)
}

func TestUpdateDocuments_NotFound(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)

	_, err := repo.UpdateDocuments(context.Background(), indexed(9, "a", "b"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocuments(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx,
		indexed(1, "keep", "me", "f"),
		indexed(2, "drop", "me", "f"),
	)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteDocuments(ctx, 2))

	_, err = repo.GetDocument(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetWordsRecord(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetTokenRecord(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ids, err := repo.FindByToken(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)

	ids, err = repo.FindByFilters(ctx, []string{"f"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1}, ids)

	err = repo.DeleteDocuments(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetDocuments(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "a", "b"), indexed(2, "c", "d"))
	require.NoError(t, err)

	docs, err := repo.GetDocuments(ctx, 1, 2, 3, 1)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Contains(t, docs, core.ID(1))
	assert.Contains(t, docs, core.ID(2))
	assert.NotContains(t, docs, core.ID(3))
}

func TestListDocuments(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		_, err := repo.AddDocuments(ctx, indexed(core.ID(i*100), "doc", fmt.Sprint(i)))
		require.NoError(t, err)
	}

	page, err := repo.ListDocuments(ctx, 0, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, core.ID(100), page[0].Id)
	assert.Equal(t, core.ID(400), page[3].Id)

	page, err = repo.ListDocuments(ctx, 400, 100)
	require.NoError(t, err)
	require.Len(t, page, 6)
	assert.Equal(t, core.ID(500), page[0].Id)

	_, err = repo.ListDocuments(ctx, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestForEachWordsRecord(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(2, "b", "b"), indexed(1, "a", "a"))
	require.NoError(t, err)

	var seen []core.ID
	err = repo.ForEachWordsRecord(ctx, func(record *core.WordsRecord) error {
		seen = append(seen, record.Id)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{1, 2}, seen)

	stop := fmt.Errorf("stop")
	calls := 0
	err = repo.ForEachWordsRecord(ctx, func(record *core.WordsRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestFindByFilters(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	for i := 1; i <= 300; i++ {
		_, err := repo.AddDocuments(ctx, indexed(core.ID(i), "title", "desc",
			fmt.Sprintf("filter%d", i%10), fmt.Sprintf("filter%d", i%100)))
		require.NoError(t, err)
	}
	_, err := repo.AddDocuments(ctx,
		indexed(1000, "single", "arity", "filter1"),
		indexed(1001, "no", "filters"),
	)
	require.NoError(t, err)

	t.Run("both exact", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"filter1", "filter11"})
		require.NoError(t, err)
		assert.Equal(t, []core.ID{11, 111, 211}, sortedIDs(ids))
	})

	t.Run("trailing wildcard", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"filter3", ""})
		require.NoError(t, err)
		assert.Len(t, ids, 30)
		for _, id := range ids {
			assert.Equal(t, core.ID(3), id%10)
		}
	})

	t.Run("leading wildcard", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"", "filter42"})
		require.NoError(t, err)
		assert.Equal(t, []core.ID{42, 142, 242}, sortedIDs(ids))
	})

	t.Run("all wildcards", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"", ""})
		require.NoError(t, err)
		assert.Len(t, ids, 300)
	})

	t.Run("arity must match", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"filter1"})
		require.NoError(t, err)
		assert.Equal(t, []core.ID{1000}, ids)
	})

	t.Run("empty tuple", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{})
		require.NoError(t, err)
		assert.Equal(t, []core.ID{1001}, ids)
	})

	t.Run("no match", func(t *testing.T) {
		ids, err := repo.FindByFilters(ctx, []string{"filter1", "filter12"})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := repo.FindByFilters(ctx, []string{"\xff\xfe"})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestWithTransaction_SpansRepositoryCalls(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.AddDocuments(ctx, indexed(1, "a", "b")); err != nil {
			return err
		}
		// Reads in the same transaction see the pending write.
		if _, err := repo.GetDocument(ctx, 1); err != nil {
			return err
		}
		_, err := repo.AddDocuments(ctx, indexed(1, "dup", "dup"))
		return err
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = repo.GetDocument(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithSnapshot_BlocksWriters(t *testing.T) {
	repo, _ := newTestDocumentRepository(t)
	ctx := context.Background()

	_, err := repo.AddDocuments(ctx, indexed(1, "a", "b"))
	require.NoError(t, err)

	started := make(chan struct{})
	var wg sync.WaitGroup
	err = repo.WithSnapshot(ctx, func(ctx context.Context) error {
		wg.Add(1)
		go func() {
			defer wg.Done()
			close(started)
			_, err := repo.AddDocuments(context.Background(), indexed(2, "c", "d"))
			assert.NoError(t, err)
		}()
		<-started

		count, err := repo.CountDocuments(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, count)
		return nil
	})
	require.NoError(t, err)
	wg.Wait()

	count, err := repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
