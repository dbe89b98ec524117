package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

// Document is one source document to index. ID identifies the document in
// retrieval results, typically the file name.
type Document struct {
	ID   string
	Text string
}

// Source supplies the documents for one ingestion run.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
}

// DirSource reads plain-text documents from a directory. Only *.txt and
// *.md files are picked up; documents are ordered by file name so repeated
// runs over the same directory index chunks in the same order.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Load(ctx context.Context) ([]Document, error) {
	var files []string
	for _, pattern := range []string{"*.txt", "*.md"} {
		matched, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to glob document files", goerr.V("dir", s.dir))
		}
		files = append(files, matched...)
	}
	sort.Strings(files)

	docs := make([]Document, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read document", goerr.V("path", file))
		}
		docs = append(docs, Document{
			ID:   filepath.Base(file),
			Text: string(data),
		})
	}
	return docs, nil
}
