// Package vectorstore holds indexed chunks and answers similarity queries.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
)

var ErrLengthMismatch = errors.New("chunks and vectors length mismatch")

// Chunk is a piece of document text tagged with the file it came from.
type Chunk struct {
	Text   string
	Source string
}

// Record is a stored chunk.
type Record struct {
	ID     string
	Text   string
	Source string
}

// Match is a record scored against a query vector.
type Match struct {
	Record
	Score float64
}

// Store persists vectors and supports similarity search.
type Store interface {
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) ([]string, error)
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, ids []string) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK sorts matches by descending score and truncates to k.
func topK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
