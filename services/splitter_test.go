package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSplitter_RoundTrip(t *testing.T) {
	cases := map[string]string{
		"short":     "Sentencia de casación.",
		"exact":     strings.Repeat("a", 1000),
		"long":      strings.Repeat("La Corte Suprema de Justicia decide el recurso. ", 120),
		"multibyte": strings.Repeat("niño año acción ", 300),
	}

	s := NewTextSplitter(1000, 30)
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			chunks := s.Split(text)
			require.NotEmpty(t, chunks)
			for _, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c)), 1000)
			}
			assert.Equal(t, text, s.Join(chunks))
		})
	}
}

func TestTextSplitter_Overlap(t *testing.T) {
	s := NewTextSplitter(10, 3)
	chunks := s.Split("abcdefghijklmnopqrstuvwxyz")

	require.Equal(t, []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}, chunks)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-3:], chunks[i][:3])
	}
}

func TestTextSplitter_Blank(t *testing.T) {
	s := NewTextSplitter(1000, 30)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split(" \n\t "))
}

func TestNewTextSplitter_Defaults(t *testing.T) {
	s := NewTextSplitter(0, 50)
	assert.Equal(t, 1000, s.ChunkSize)
	assert.Equal(t, 50, s.ChunkOverlap)

	s = NewTextSplitter(10, 10)
	assert.Equal(t, 0, s.ChunkOverlap)
}
