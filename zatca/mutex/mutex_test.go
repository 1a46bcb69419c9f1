package mutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRWMutex_SerializesWriters(t *testing.T) {
	var m KeyedRWMutex[string]
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("a")
			counter++
			m.Unlock("a")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedRWMutex_IndependentKeys(t *testing.T) {
	var m KeyedRWMutex[string]
	m.Lock("a")
	m.Lock("b")
	assert.Equal(t, 2, m.Len())

	m.Unlock("a")
	m.Unlock("b")
	assert.Equal(t, 0, m.Len())
}

func TestKeyedRWMutex_Readers(t *testing.T) {
	var m KeyedRWMutex[int]
	m.RLock(1)
	m.RLock(1)
	assert.Equal(t, 1, m.Len())
	m.RUnlock(1)
	m.RUnlock(1)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedRWMutex_UnlockUnknownPanics(t *testing.T) {
	var m KeyedRWMutex[string]
	assert.Panics(t, func() { m.Unlock("missing") })
}
