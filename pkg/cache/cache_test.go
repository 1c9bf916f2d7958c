package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleindex/simple-repository-server/pkg/cache"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store, err := cache.NewMemory(8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "absent")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v1")))
	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	require.NoError(t, store.Set(ctx, "k", []byte("v2")))
	value, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemoryStoreEviction(t *testing.T) {
	t.Parallel()

	store, err := cache.NewMemory(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))
	require.NoError(t, store.Set(ctx, "c", []byte("3")))

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestDiskStore(t *testing.T) {
	t.Parallel()

	store, err := cache.NewDisk(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "absent")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, store.Set(ctx, "https://pypi.example/simple/", []byte("body")))
	value, err := store.Get(ctx, "https://pypi.example/simple/")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), value)

	require.NoError(t, store.Delete(ctx, "https://pypi.example/simple/"))
	_, err = store.Get(ctx, "https://pypi.example/simple/")
	assert.ErrorIs(t, err, cache.ErrMiss)

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, "https://pypi.example/simple/"))
}

func TestDiskStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := cache.NewDisk(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v")))

	matches, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDiskStoreDefaultsDirectory(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	store, err := cache.NewDisk("")
	require.NoError(t, err)
	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGroupCoalesces(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	var group cache.Group[string]

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]string, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = group.Do(context.Background(), "key", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "value", nil
			})
		}(i)
	}

	// give every waiter a chance to join the flight before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i])
	}
}

func TestGroupCallerCancellationDetaches(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var group cache.Group[string]

	started := make(chan struct{})
	survived := make(chan error, 1)
	go func() {
		_, err := group.Do(context.Background(), "key", func(ctx context.Context) (string, error) {
			close(started)
			select {
			case <-release:
				return "value", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
		survived <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := group.Do(ctx, "key", func(context.Context) (string, error) {
		t.Error("second caller must join the in-flight execution")
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// the shared execution keeps running and completes for the first caller
	close(release)
	require.NoError(t, <-survived)
}

func TestGroupPropagatesError(t *testing.T) {
	t.Parallel()

	var group cache.Group[int]
	boom := errors.New("boom")
	_, err := group.Do(context.Background(), "key", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}
