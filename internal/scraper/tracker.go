package scraper

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const idLogName = "downloaded_ids.txt"

// SanitizeTopic maps a topic to its directory name: lower case, spaces as underscores.
func SanitizeTopic(topic string) string {
	return strings.ToLower(strings.ReplaceAll(topic, " ", "_"))
}

// Tracker remembers which documents a topic already holds.
type Tracker interface {
	Load(topic string) (map[string]struct{}, error)
	Record(topic, key string) error
	UsesDocumentIDs() bool
}

// NewTracker returns the tracker for strategy "id" or "filename".
func NewTracker(strategy, root string) (Tracker, error) {
	switch strategy {
	case "id", "":
		return &IDLogTracker{root: root}, nil
	case "filename":
		return &FilenameTracker{root: root}, nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", strategy)
	}
}

// FilenameTracker treats the PDFs present under the topic directory as the known set.
type FilenameTracker struct {
	root string
}

// Load returns the names of the PDFs already in the topic directory.
func (t *FilenameTracker) Load(topic string) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	dir := filepath.Join(t.root, SanitizeTopic(topic))

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			known[d.Name()] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return known, nil
}

// Record is a no-op: the moved file itself is the record.
func (t *FilenameTracker) Record(string, string) error { return nil }

func (t *FilenameTracker) UsesDocumentIDs() bool { return false }

// IDLogTracker keeps an append-only log of accepted keys per topic.
type IDLogTracker struct {
	root string
	mu   sync.Mutex
}

func (t *IDLogTracker) logPath(topic string) string {
	return filepath.Join(t.root, SanitizeTopic(topic), idLogName)
}

// Load reads the topic's ID log. A missing log means nothing is known yet.
func (t *IDLogTracker) Load(topic string) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	known := make(map[string]struct{})
	f, err := os.Open(t.logPath(topic))
	if errors.Is(err, fs.ErrNotExist) {
		return known, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if key := strings.TrimSpace(sc.Text()); key != "" {
			known[key] = struct{}{}
		}
	}
	return known, sc.Err()
}

// Record appends key to the topic's ID log.
func (t *IDLogTracker) Record(topic, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := t.logPath(topic)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, key); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (t *IDLogTracker) UsesDocumentIDs() bool { return true }
