package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"abogacia-chatbot/internal/logger"
)

// Filer moves staged downloads into their topic directory, or drops them
// when the key is already known.
type Filer struct {
	root    string
	tracker Tracker
}

// NewFiler files documents under root/<sanitized topic>, recording keys in tracker.
func NewFiler(root string, tracker Tracker) *Filer {
	return &Filer{root: root, tracker: tracker}
}

// File handles one staged file. It returns the destination path and true when
// the file was accepted; known is updated in place.
func (f *Filer) File(topic, staged, key string, known map[string]struct{}) (string, bool, error) {
	if _, dup := known[key]; dup {
		logger.Info("Document already downloaded, removing staged copy", "topic", topic, "key", key, "file", staged)
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			return "", false, fmt.Errorf("removing duplicate %s: %w", staged, err)
		}
		return "", false, nil
	}

	dir := filepath.Join(f.root, SanitizeTopic(topic))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating topic directory: %w", err)
	}

	dest := freeName(dir, filepath.Base(staged))
	if err := os.Rename(staged, dest); err != nil {
		return "", false, fmt.Errorf("moving %s: %w", staged, err)
	}
	if err := f.tracker.Record(topic, key); err != nil {
		// an unrecorded file would be downloaded again and filed twice
		if rmErr := os.Remove(dest); rmErr != nil {
			logger.Error("Failed to roll back unrecorded document", "path", dest, "error", rmErr)
		}
		return "", false, fmt.Errorf("recording %s: %w", key, err)
	}
	known[key] = struct{}{}

	logger.Info("Document filed", "topic", topic, "key", key, "path", dest)
	return dest, true, nil
}

// freeName avoids overwriting a different document that shares the file name.
func freeName(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
	}
}
