package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(limits RateLimits) *GeminiClient {
	return &GeminiClient{
		breaker:      newBreaker(),
		rateLimiter:  rate.NewLimiter(rate.Inf, 1),
		tokenCounter: NewTokenCounter(limits),
		model:        "gemini-test",
	}
}

func TestGenerate_OpenBreakerReturnsError(t *testing.T) {
	gc := newTestClient(getRateLimits("free"))

	refused := errors.New("dial tcp 127.0.0.1:1: connection refused")
	for i := 0; i < 3; i++ {
		_, err := gc.breaker.Execute(func() (interface{}, error) { return nil, refused })
		require.ErrorIs(t, err, refused)
	}

	completion, err := gc.Generate(context.Background(), "¿Qué es una tutela?")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Empty(t, completion.Text, "no fallback text may pass as a model answer")
}

func TestGenerate_TokenBudgetExhausted(t *testing.T) {
	gc := newTestClient(RateLimits{RPM: 0, TPM: 100, RPD: 100})

	_, err := gc.Generate(context.Background(), "hola")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestTokenCounter_Limits(t *testing.T) {
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 10})

	assert.True(t, tc.CanConsume(50, 1))
	tc.RecordUsage(50, 1)
	assert.False(t, tc.CanConsume(60, 1), "minute token budget")
	tc.RecordUsage(10, 1)
	assert.False(t, tc.CanConsume(1, 1), "minute request budget")
}
