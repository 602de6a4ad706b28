package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localkb/internal/domain"
	"localkb/internal/task"
)

// memStore is an in-memory DocumentStore keyed by document id.
type memStore struct {
	docs    map[string]domain.Document
	status  domain.IndexStatus
	inserts int

	// onInsert runs after each successful insert; used to trip cancellation
	// mid-run.
	onInsert func()
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]domain.Document), status: domain.IndexNotCreated}
}

func (m *memStore) Insert(tok *task.Token, doc domain.Document) error {
	if tok != nil {
		if err := tok.Check(); err != nil {
			return err
		}
	}
	m.docs[doc.ID] = doc
	m.inserts++
	if m.onInsert != nil {
		m.onInsert()
	}
	return nil
}

func (m *memStore) Delete(documentID string) error {
	if _, ok := m.docs[documentID]; !ok {
		return domain.NewError(domain.CodeDocumentNotFound, "no rows for "+documentID, nil)
	}
	delete(m.docs, documentID)
	return nil
}

func (m *memStore) Update(tok *task.Token, documentID string, doc domain.Document) error {
	if err := m.Delete(documentID); err != nil {
		return err
	}
	doc.ID = documentID
	return m.Insert(tok, doc)
}

func (m *memStore) Count() int { return len(m.docs) }

func (m *memStore) SetStatus(status domain.IndexStatus) error {
	m.status = status
	return nil
}

// fixtureReader reads real files through the production reader types but is
// trivial enough to exercise the indexer alone.
type fixtureReader struct{}

func (fixtureReader) ReadDocument(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.CodeCorruptFile, "cannot read "+path, err)
	}
	if len(data) == 0 {
		return domain.Document{}, domain.NewError(domain.CodeEmptyContent, "empty file "+path, nil)
	}
	return domain.Document{
		ID:      domain.DocumentID(path),
		Title:   filepath.Base(path),
		Content: string(data),
		Path:    path,
		Type:    domain.FileTypeText,
		Size:    int64(len(data)),
	}, nil
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexFoldersHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.txt", "first document body")
	writeFixture(t, dir, "b.md", "second document body")
	writeFixture(t, dir, "ignored.csv", "wrong extension")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	var snapshots []task.Progress
	report, err := ix.IndexFolders(nil, []string{dir}, func(p task.Progress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, domain.IndexCreated, store.status)
	require.NotEmpty(t, snapshots)
	assert.Equal(t, 2, snapshots[len(snapshots)-1].Current)
}

func TestIndexFoldersSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "good.txt", "valid content")
	writeFixture(t, dir, "empty.txt", "")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	report, err := ix.IndexFolders(nil, []string{dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.IndexCreated, store.status)
}

func TestIndexFoldersAllFailuresSetErrorStatus(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "empty.txt", "")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	report, err := ix.IndexFolders(nil, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, domain.IndexError, store.status)
}

func TestIndexFoldersEmptyFolder(t *testing.T) {
	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	report, err := ix.IndexFolders(nil, []string{t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Files)
	assert.Equal(t, domain.IndexNotCreated, store.status, "empty run must not touch status")
}

func TestIndexFoldersCancellationAfterFirstDocument(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.txt", "first")
	writeFixture(t, dir, "b.txt", "second")
	writeFixture(t, dir, "c.txt", "third")

	reg := task.NewRegistry()
	tok := reg.New("")

	store := newMemStore()
	store.onInsert = func() { tok.Cancel("user interrupt") }

	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())
	report, err := ix.IndexFolders(tok, []string{dir}, nil)

	require.Error(t, err)
	assert.True(t, domain.IsCancelled(err), "outcome must be CANCELLED, not a generic failure")
	assert.Equal(t, 1, store.Count(), "exactly the first document's rows remain")
	assert.Equal(t, 1, report.Indexed)
}

func TestIndexFoldersReindexReplacesDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "a.txt", "version one")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	_, err := ix.IndexFolders(nil, []string{dir}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.Count())

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	_, err = ix.IndexFolders(nil, []string{dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Count(), "same path must not duplicate")
	assert.Equal(t, "version two", store.docs[domain.DocumentID(path)].Content)
}

func TestAddUpdateRemoveDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "single.txt", "standalone content")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	doc, err := ix.AddDocument(nil, path)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentID(path), doc.ID)
	assert.Equal(t, 1, store.Count())

	require.NoError(t, os.WriteFile(path, []byte("revised content"), 0o644))
	doc, err = ix.UpdateDocument(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "revised content", store.docs[doc.ID].Content)

	require.NoError(t, ix.RemoveDocument(path))
	assert.Equal(t, 0, store.Count())

	err = ix.RemoveDocument(path)
	require.Error(t, err)
	assert.Equal(t, domain.CodeDocumentNotFound, domain.CodeOf(err))
}

func TestIndexerSubdirectoriesAreWalked(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeFixture(t, dir, "top.txt", "top level")
	writeFixture(t, sub, "deep.txt", "deeply nested")

	store := newMemStore()
	ix := NewIndexer(store, fixtureReader{}, nil, zerolog.Nop())

	report, err := ix.IndexFolders(nil, []string{dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
}
