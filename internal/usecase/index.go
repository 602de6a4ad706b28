package usecase

import (
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"localkb/internal/domain"
	"localkb/internal/task"
)

// DocumentStore is the slice of the collection the indexer needs.
type DocumentStore interface {
	Insert(tok *task.Token, doc domain.Document) error
	Delete(documentID string) error
	Update(tok *task.Token, documentID string, doc domain.Document) error
	Count() int
	SetStatus(status domain.IndexStatus) error
}

// DocumentReader loads a file from disk into a document.
type DocumentReader interface {
	ReadDocument(path string) (domain.Document, error)
}

// DefaultExtensions lists the file extensions indexed when the
// configuration does not override them.
var DefaultExtensions = []string{".pdf", ".txt", ".text", ".md", ".markdown", ".docx"}

// IndexReport summarizes one folder-indexing run.
type IndexReport struct {
	Indexed  int
	Failed   int
	Files    int
	Duration time.Duration
}

// Indexer walks folders and feeds their documents into the collection.
type Indexer struct {
	store      DocumentStore
	reader     DocumentReader
	extensions []string
	log        zerolog.Logger
}

// NewIndexer creates an indexer. Empty extensions fall back to
// DefaultExtensions.
func NewIndexer(store DocumentStore, reader DocumentReader, extensions []string, log zerolog.Logger) *Indexer {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	return &Indexer{
		store:      store,
		reader:     reader,
		extensions: extensions,
		log:        log.With().Str("component", "indexer").Logger(),
	}
}

// IndexFolders discovers every supported file under the folders and indexes
// them. Per-file read failures are logged and counted but do not abort the
// run; cancellation does, leaving already-written documents in place.
func (ix *Indexer) IndexFolders(tok *task.Token, folders []string, onProgress func(task.Progress)) (IndexReport, error) {
	started := time.Now()

	files, err := ix.discover(folders)
	if err != nil {
		return IndexReport{}, err
	}

	report := IndexReport{Files: len(files)}
	if len(files) == 0 {
		report.Duration = time.Since(started)
		ix.log.Warn().Strs("folders", folders).Msg("no supported files found")
		return report, nil
	}

	if err := ix.store.SetStatus(domain.IndexCreating); err != nil {
		return report, err
	}

	tracker := task.NewTracker(len(files), "indexing documents", onProgress)

	for _, path := range files {
		if tok != nil {
			if err := tok.Check(); err != nil {
				ix.store.SetStatus(domain.IndexError)
				report.Duration = time.Since(started)
				return report, err
			}
		}

		if err := ix.indexFile(tok, path); err != nil {
			if domain.IsCancelled(err) {
				ix.store.SetStatus(domain.IndexError)
				report.Duration = time.Since(started)
				return report, err
			}
			report.Failed++
			ix.log.Warn().Err(err).Str("path", path).Msg("skipping document")
		} else {
			report.Indexed++
		}
		tracker.Update(1, filepath.Base(path))
	}

	tracker.Finish("indexing complete")

	status := domain.IndexCreated
	if report.Indexed == 0 {
		status = domain.IndexError
	}
	if err := ix.store.SetStatus(status); err != nil {
		return report, err
	}

	report.Duration = time.Since(started)
	ix.log.Info().
		Int("indexed", report.Indexed).
		Int("failed", report.Failed).
		Dur("elapsed", report.Duration).
		Msg("folder indexing finished")
	return report, nil
}

// indexFile reads one file and inserts it, replacing any rows a previous
// run stored under the same path-derived id.
func (ix *Indexer) indexFile(tok *task.Token, path string) error {
	doc, err := ix.reader.ReadDocument(path)
	if err != nil {
		return err
	}
	if err := ix.store.Delete(doc.ID); err != nil {
		var derr *domain.Error
		if !errors.As(err, &derr) || derr.Code != domain.CodeDocumentNotFound {
			return err
		}
	}
	return ix.store.Insert(tok, doc)
}

// AddDocument indexes a single file.
func (ix *Indexer) AddDocument(tok *task.Token, path string) (domain.Document, error) {
	doc, err := ix.reader.ReadDocument(path)
	if err != nil {
		return domain.Document{}, err
	}
	if err := ix.store.Insert(tok, doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// UpdateDocument re-reads a file and replaces its rows under the same id.
func (ix *Indexer) UpdateDocument(tok *task.Token, path string) (domain.Document, error) {
	doc, err := ix.reader.ReadDocument(path)
	if err != nil {
		return domain.Document{}, err
	}
	if err := ix.store.Update(tok, doc.ID, doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// RemoveDocument deletes all rows for the file at path.
func (ix *Indexer) RemoveDocument(path string) error {
	return ix.store.Delete(domain.DocumentID(path))
}

// discover globs every folder for the configured extensions and returns a
// sorted, deduplicated file list.
func (ix *Indexer) discover(folders []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, folder := range folders {
		for _, ext := range ix.extensions {
			pattern := filepath.Join(folder, "**", "*"+ext)
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, domain.WrapError(domain.CodeStoreFailed,
					"cannot scan folder "+folder, err)
			}
			for _, m := range matches {
				// Absolute paths keep the path-derived document ids stable
				// between folder runs and single-document commands.
				abs, err := filepath.Abs(m)
				if err != nil {
					abs = m
				}
				if _, ok := seen[abs]; ok {
					continue
				}
				seen[abs] = struct{}{}
				files = append(files, abs)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
