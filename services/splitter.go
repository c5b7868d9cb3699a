package services

import (
	"strings"
)

// TextSplitter cuts text into windows of at most ChunkSize characters,
// consecutive windows sharing ChunkOverlap characters.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewTextSplitter splits into chunks of size runes overlapping by overlap.
func NewTextSplitter(size, overlap int) *TextSplitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &TextSplitter{ChunkSize: size, ChunkOverlap: overlap}
}

// Split returns no chunks for blank text.
func (s *TextSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	step := s.ChunkSize - s.ChunkOverlap

	var chunks []string
	for start := 0; ; start += step {
		end := min(start+s.ChunkSize, n)
		chunks = append(chunks, string(runes[start:end]))
		if end >= n {
			break
		}
	}
	return chunks
}

// Join reverses Split.
func (s *TextSplitter) Join(chunks []string) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		r := []rune(c)
		if len(r) > s.ChunkOverlap {
			sb.WriteString(string(r[s.ChunkOverlap:]))
		}
	}
	return sb.String()
}
