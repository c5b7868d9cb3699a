package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrWaitTimeout is returned when a condition is still false after the budget.
var ErrWaitTimeout = errors.New("wait budget exhausted")

var errNotYet = errors.New("condition not met")

// WaitFor polls cond every interval until it holds or timeout elapses.
func WaitFor(ctx context.Context, interval, timeout time.Duration, cond func() bool) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if cond() {
			return struct{}{}, nil
		}
		return struct{}{}, errNotYet
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrWaitTimeout
}

// WaitForNewFiles waits until dir holds at least one file with ext that is not in before.
func WaitForNewFiles(ctx context.Context, dir, ext string, before map[string]struct{}, interval, timeout time.Duration) ([]string, error) {
	var found []string
	err := WaitFor(ctx, interval, timeout, func() bool {
		files, err := listFiles(dir, ext)
		if err != nil {
			return false
		}
		found = found[:0]
		for _, f := range files {
			if _, seen := before[f]; !seen {
				found = append(found, f)
			}
		}
		return len(found) > 0
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// listFiles returns the base names of regular files in dir ending in ext, sorted.
func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func fileSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
