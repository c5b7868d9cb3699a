package utils

import (
	"context"
	"time"
)

const (
	// StoreTimeout bounds history and index lookups.
	StoreTimeout = 10 * time.Second

	// AnswerTimeout bounds one chat turn: condense, retrieve and answer.
	AnswerTimeout = 2 * time.Minute
)

func WithStoreTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, StoreTimeout)
}

func WithAnswerTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, AnswerTimeout)
}
