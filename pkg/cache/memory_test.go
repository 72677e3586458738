package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](8, time.Minute)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", 1))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string](8, time.Minute)
	require.NoError(t, c.Set(ctx, "curriculum:si:2019", "a"))
	require.NoError(t, c.Set(ctx, "curriculum:si:2023", "b"))
	require.NoError(t, c.Set(ctx, "curriculum:ti:2023", "c"))

	require.NoError(t, c.DeletePrefix(ctx, "curriculum:si:"))

	assert.Equal(t, 1, c.Len())
	_, ok, _ := c.Get(ctx, "curriculum:ti:2023")
	assert.True(t, ok)

	require.NoError(t, c.Purge(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string](8, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, "k", "v"))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
