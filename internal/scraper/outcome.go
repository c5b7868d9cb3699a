package scraper

import (
	"context"
	"errors"
)

// Outcome is the result of one browser step.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Timeout
	default:
		return NotFound
	}
}
