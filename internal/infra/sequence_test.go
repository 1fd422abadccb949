package infra

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceAllocatorMonotonic(t *testing.T) {
	alloc := NewSequenceAllocator(1)

	prev := alloc.Next()
	for i := 0; i < 10000; i++ {
		id := alloc.Next()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestSequenceAllocatorUniqueUnderConcurrency(t *testing.T) {
	alloc := NewSequenceAllocator(1)

	const goroutines = 8
	const perGoroutine = 2000

	var wg sync.WaitGroup
	results := make([][]int64, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				ids = append(ids, alloc.Next())
			}
			results[idx] = ids
		}(g)
	}
	wg.Wait()

	seen := make(map[int64]bool, goroutines*perGoroutine)
	for _, ids := range results {
		for _, id := range ids {
			require.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestSequenceAllocatorIDsSortByTime(t *testing.T) {
	alloc := NewSequenceAllocator(1)

	var ids []int64
	for i := 0; i < 100; i++ {
		ids = append(ids, alloc.Next())
	}

	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, ids, sorted)
}

func TestExtractTimestamp(t *testing.T) {
	alloc := NewSequenceAllocator(1)

	before := time.Now().Add(-time.Second)
	id := alloc.Next()
	after := time.Now().Add(time.Second)

	ts := alloc.ExtractTimestamp(id)
	assert.True(t, ts.After(before), "timestamp %v should be after %v", ts, before)
	assert.True(t, ts.Before(after), "timestamp %v should be before %v", ts, after)
}

func TestWorkerIDIsMasked(t *testing.T) {
	alloc := NewSequenceAllocator(1 << 12)
	assert.Equal(t, int64(0), alloc.workerID&^((1<<workerIDBits)-1))
}
