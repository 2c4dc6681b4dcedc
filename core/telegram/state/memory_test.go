package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n    int
	seen []int
}

func TestMemoryStoreCreatesLazily(t *testing.T) {
	var built int
	store := NewMemoryStore(func() *counter {
		built++
		return &counter{}
	})
	assert.Zero(t, store.Len())

	store.Do(1, func(c *counter) { c.n++ })
	store.Do(1, func(c *counter) { c.n++ })
	store.Do(2, func(c *counter) { c.n++ })

	assert.Equal(t, 2, built)
	assert.Equal(t, 2, store.Len())

	var got int
	store.Do(1, func(c *counter) { got = c.n })
	assert.Equal(t, 2, got)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(func() *counter { return &counter{} })
	store.Do(5, func(c *counter) { c.n = 10 })

	store.Clear(5)
	assert.Zero(t, store.Len())

	var got int
	store.Do(5, func(c *counter) { got = c.n })
	assert.Zero(t, got)
}

func TestMemoryStoreSerializesPerKey(t *testing.T) {
	store := NewMemoryStore(func() *counter { return &counter{} })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Do(7, func(c *counter) {
				c.n++
				c.seen = append(c.seen, i)
			})
		}(i)
	}
	wg.Wait()

	store.Do(7, func(c *counter) {
		assert.Equal(t, 50, c.n)
		assert.Len(t, c.seen, 50)
	})
}

func TestMemoryStoreKeysDoNotBlockEachOther(t *testing.T) {
	store := NewMemoryStore(func() *counter { return &counter{} })
	hold := make(chan struct{})
	entered := make(chan struct{})

	go store.Do(1, func(*counter) {
		close(entered)
		<-hold
	})
	<-entered

	done := make(chan struct{})
	go func() {
		store.Do(2, func(c *counter) { c.n++ })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key 2 blocked behind key 1")
	}
	close(hold)
	require.Equal(t, 2, store.Len())
}
