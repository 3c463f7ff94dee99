package core_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-I7/graphcalculator-sub001/core"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("key", "value", time.Minute)

	value, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	// non-consuming read
	value, ok = cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestCache_GetMissing(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("key", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("key")
	assert.False(t, ok)

	// lazy eviction removed the entry
	assert.Equal(t, 0, cache.Len())
}

func TestCache_AddRefusesLiveEntry(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	require.NoError(t, cache.Add("key", "first", time.Minute))
	assert.ErrorIs(t, cache.Add("key", "second", time.Minute), core.ErrKeyExists)

	value, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "first", value)
}

func TestCache_AddReplacesExpiredEntry(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	require.NoError(t, cache.Add("key", "first", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cache.Add("key", "second", time.Minute))

	value, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "second", value)
}

func TestCache_PopConsumes(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("key", "value", time.Minute)

	value, ok := cache.Pop("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	_, ok = cache.Pop("key")
	assert.False(t, ok)
}

func TestCache_PopExpired(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("key", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Pop("key")
	assert.False(t, ok)
}

func TestCache_Sweep(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("live", "value", time.Minute)
	cache.Set("dead1", "value", 5*time.Millisecond)
	cache.Set("dead2", "value", 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 2, cache.Sweep())
	assert.Equal(t, 1, cache.Len())
}

func TestCache_BackgroundSweeper(t *testing.T) {
	cache := core.NewCache[string](10 * time.Millisecond)
	defer cache.Close()

	// never re-accessed entries must still be removed
	cache.Set("abandoned", "value", 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCache_ConcurrentPopSingleWinner(t *testing.T) {
	cache := core.NewCache[string](0)
	defer cache.Close()

	cache.Set("key", "value", time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := cache.Pop("key"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestCache_ConcurrentMixedAccess(t *testing.T) {
	cache := core.NewCache[int](time.Millisecond)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%4)
			for j := 0; j < 100; j++ {
				cache.Set(key, j, time.Millisecond*time.Duration(j%5))
				cache.Get(key)
				cache.Add(key, j, time.Millisecond)
				cache.Remove(key)
			}
		}(i)
	}
	wg.Wait()
}
