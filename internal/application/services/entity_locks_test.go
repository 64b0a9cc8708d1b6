package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityLocksSerializeSameKey(t *testing.T) {
	locks := NewEntityLocks()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("lab:synevo_cluj")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestEntityLocksIndependentKeys(t *testing.T) {
	locks := NewEntityLocks()

	unlockA := locks.Lock("lab:synevo")
	// A different key must not block while the first is held.
	unlockB := locks.Lock("lab:regina_maria")
	unlockB()
	unlockA()
}

func TestEntityLocksEntriesReleased(t *testing.T) {
	locks := NewEntityLocks()

	unlock := locks.Lock("result:abc")
	assert.Len(t, locks.locks, 1)
	unlock()
	assert.Empty(t, locks.locks)

	// Reacquiring after release works.
	unlock = locks.Lock("result:abc")
	unlock()
	assert.Empty(t, locks.locks)
}
