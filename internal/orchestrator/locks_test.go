package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLocker_ProcessLocalExclusion(t *testing.T) {
	l := NewLocker(nil, 0, zap.NewNop())
	ctx := context.Background()

	assert.True(t, l.Acquire(ctx, "echo"))
	assert.False(t, l.Acquire(ctx, "echo"), "second acquire for the same name must fail while the first is held")

	l.Release(ctx, "echo")
	assert.True(t, l.Acquire(ctx, "echo"), "acquire must succeed again after release")
}

func TestLocker_IndependentNames(t *testing.T) {
	l := NewLocker(nil, 0, zap.NewNop())
	ctx := context.Background()

	assert.True(t, l.Acquire(ctx, "echo"))
	assert.True(t, l.Acquire(ctx, "other"))
}
