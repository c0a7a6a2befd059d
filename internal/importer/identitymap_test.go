package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMap_CreatesOncePerKey(t *testing.T) {
	m := newIdentityMap()
	var calls atomic.Int32
	create := func(context.Context) (string, error) {
		calls.Add(1)
		return "client-1", nil
	}

	var wg sync.WaitGroup
	var reused atomic.Int32
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, r, err := m.resolve(context.Background(), "client:12345678900", create)
			assert.NoError(t, err)
			assert.Equal(t, "client-1", id)
			if r {
				reused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(15), reused.Load())
	assert.Equal(t, 1, m.created())
}

func TestIdentityMap_FailureIsNotCached(t *testing.T) {
	m := newIdentityMap()
	boom := errors.New("boom")

	_, _, err := m.resolve(context.Background(), "insurer:porto", func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, m.created())

	id, reused, err := m.resolve(context.Background(), "insurer:porto", func(context.Context) (string, error) {
		return "insurer-1", nil
	})
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "insurer-1", id)
}

func TestIdentityMap_CancelledContextSkipsCreate(t *testing.T) {
	m := newIdentityMap()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.resolve(ctx, "branch:auto", func(context.Context) (string, error) {
		t.Fatal("create called with a cancelled context")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
