package sandbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/securevm/internal/realm"
)

func TestPool(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()

	stats := pool.Stats()
	assert.Equal(t, 2, stats["size"])
	assert.Equal(t, 2, stats["available"])

	result, err := pool.Execute(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Value)

	stats = pool.Stats()
	assert.Equal(t, 2, stats["available"])
	assert.Equal(t, 0, stats["in_use"])
}

func TestPoolIsolation(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Execute(context.Background(), "var leaked = 1; leaked", nil)
	require.NoError(t, err)

	result, err := pool.Execute(context.Background(), "typeof leaked", nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)
}

func TestPoolBindings(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	result, err := pool.Execute(context.Background(), "add(2, 3)", map[string]interface{}{
		"add": func(a, b int) int { return a + b },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Value)
	assert.Equal(t, "5", result.JSON)
}

func TestPoolErrors(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)

	result, err := pool.Execute(context.Background(), "throw new Error('boom')", nil)
	assert.ErrorIs(t, err, ErrEvaluation)
	require.NotNil(t, result)
	assert.Error(t, result.Error)

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	_, err = pool.Execute(context.Background(), "1", map[string]interface{}{"x": 1})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolAcquireCancelled(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	c, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, pool.Release(c))
	assert.Equal(t, 1, pool.Stats()["available"])
}

func TestPoolRebuildsFailedReplacements(t *testing.T) {
	var failing atomic.Bool
	factory := realm.FactoryFunc(func() (*realm.Realm, error) {
		if failing.Load() {
			return nil, errors.New("realm unavailable")
		}
		return (&realm.GojaFactory{}).NewRealm()
	})

	pool, err := NewPool(DefaultConfig(), 1, WithFactory(factory))
	require.NoError(t, err)
	defer pool.Close()

	failing.Store(true)
	_, err = pool.Execute(context.Background(), "1", nil)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 0, stats["available"])
	assert.Equal(t, 1, stats["missing"])
	assert.Equal(t, 0, stats["in_use"])

	failing.Store(false)
	result, err := pool.Execute(context.Background(), "2", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Value)

	stats = pool.Stats()
	assert.Equal(t, 1, stats["available"])
	assert.Equal(t, 0, stats["missing"])
}
