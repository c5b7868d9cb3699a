package scraper

import (
	"errors"
	"strconv"
	"strings"
)

// ErrPaginationStuck marks a topic abandoned because the page stopped advancing.
var ErrPaginationStuck = errors.New("pagination stuck")

// ParsePageNumber reads the indicator text, e.g. "Resultado: 7 de 120".
// The token after "Resultado:" wins; otherwise the last integer token is used.
func ParsePageNumber(text string) (int, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if f == "Resultado:" && i+1 < len(fields) {
			if n, err := strconv.Atoi(fields[i+1]); err == nil {
				return n, true
			}
		}
		if rest, ok := strings.CutPrefix(f, "Resultado:"); ok && rest != "" {
			if n, err := strconv.Atoi(rest); err == nil {
				return n, true
			}
		}
	}
	for i := len(fields) - 1; i >= 0; i-- {
		if n, err := strconv.Atoi(fields[i]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// stuckGuard reports true once the same page has been read limit times in a row.
type stuckGuard struct {
	limit int
	last  int
	count int
}

func newStuckGuard(limit int) *stuckGuard {
	return &stuckGuard{limit: limit}
}

func (g *stuckGuard) Observe(page int) bool {
	if g.count > 0 && page == g.last {
		g.count++
	} else {
		g.last = page
		g.count = 1
	}
	return g.count >= g.limit
}
