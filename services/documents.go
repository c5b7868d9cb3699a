package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abogacia-chatbot/internal/ai"
	"abogacia-chatbot/internal/logger"
	"abogacia-chatbot/internal/vectorstore"
)

// ErrInvalidFilename is returned for names that are empty or carry a path.
var ErrInvalidFilename = errors.New("filename must be a bare file name")

const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial success"
	StatusFailure        = "failure"
)

// DeleteResult is the status and message returned by the delete endpoint.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// IndexStats splits the sources held by the index into web and file sources.
type IndexStats struct {
	Chunks      int `json:"chunks"`
	URLSources  int `json:"url_sources"`
	URLChunks   int `json:"url_chunks"`
	FileSources int `json:"file_sources"`
	FileChunks  int `json:"file_chunks"`
}

type QueryResult struct {
	Matches []vectorstore.Match
	Took    time.Duration
}

// DocumentService reconciles the download tree with the vector index.
type DocumentService struct {
	downloadDir string
	store       vectorstore.Store
	embedder    ai.Embedder
}

func NewDocumentService(downloadDir string, store vectorstore.Store, embedder ai.Embedder) *DocumentService {
	return &DocumentService{downloadDir: downloadDir, store: store, embedder: embedder}
}

// ValidateFilename rejects anything but a bare file name.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// DeleteDocumentAndFile removes the first file named filename under the
// download tree and every index record whose source ends with it.
func (s *DocumentService) DeleteDocumentAndFile(ctx context.Context, filename string) (*DeleteResult, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	fileDeleted, err := s.deleteFile(filename)
	if err != nil {
		return nil, err
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing index records: %w", err)
	}
	var ids []string
	for _, r := range records {
		if strings.HasSuffix(r.Source, filename) {
			ids = append(ids, r.ID)
		}
	}

	dbDeleted := false
	if len(ids) > 0 {
		n, err := s.store.Delete(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("deleting index records: %w", err)
		}
		dbDeleted = n > 0
		logger.Info("Deleted document from index", "filename", filename, "chunks", n)
	} else {
		logger.Info("Document not found in index", "filename", filename)
	}

	if remaining, err := s.store.Count(ctx); err == nil {
		logger.Debug("Index size after delete", "chunks", remaining)
	}

	switch {
	case fileDeleted && dbDeleted:
		return &DeleteResult{StatusSuccess, fmt.Sprintf("Document '%s' deleted successfully from both the folder and the database.", filename)}, nil
	case fileDeleted:
		return &DeleteResult{StatusPartialSuccess, fmt.Sprintf("Document '%s' deleted from the folder but not found in the database.", filename)}, nil
	case dbDeleted:
		return &DeleteResult{StatusPartialSuccess, fmt.Sprintf("Document '%s' deleted from the database but not found in the folder.", filename)}, nil
	default:
		return &DeleteResult{StatusFailure, fmt.Sprintf("Document '%s' not found in both the folder and the database.", filename)}, nil
	}
}

func (s *DocumentService) deleteFile(filename string) (bool, error) {
	var found string
	err := filepath.WalkDir(s.downloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("searching download directory: %w", err)
	}
	if found == "" {
		logger.Info("File not found in download directory", "filename", filename)
		return false, nil
	}

	if err := os.Remove(found); err != nil {
		return false, fmt.Errorf("removing %s: %w", found, err)
	}
	logger.Info("Deleted file from download directory", "path", found)
	return true, nil
}

// Stats counts chunks and distinct sources in the index.
func (s *DocumentService) Stats(ctx context.Context) (*IndexStats, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &IndexStats{Chunks: len(records)}
	urls := make(map[string]struct{})
	files := make(map[string]struct{})
	for _, r := range records {
		if strings.HasPrefix(r.Source, "https://") || strings.HasPrefix(r.Source, "http://") {
			stats.URLChunks++
			urls[r.Source] = struct{}{}
		} else {
			stats.FileChunks++
			files[r.Source] = struct{}{}
		}
	}
	stats.URLSources = len(urls)
	stats.FileSources = len(files)
	return stats, nil
}

// Query runs a raw similarity search and reports how long it took.
func (s *DocumentService) Query(ctx context.Context, question string, k int) (*QueryResult, error) {
	start := time.Now()

	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Matches: matches, Took: time.Since(start)}, nil
}
