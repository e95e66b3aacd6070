package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeRejectsOutOfRangeWorker(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)

	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)

	g, err := NewSnowflake(maxWorkerID)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestGenerateIsUniqueAcrossGoroutines(t *testing.T) {
	g, err := NewSnowflake(3)
	require.NoError(t, err)

	const workers, perWorker = 8, 2000
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- g.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateEmbedsWorkerID(t *testing.T) {
	g, err := NewSnowflake(42)
	require.NoError(t, err)

	id := g.Generate()
	assert.Equal(t, int64(42), (id>>workerIDShift)&maxWorkerID)
}

func TestGenerateSettlementNo(t *testing.T) {
	a := GenerateSettlementNo()
	b := GenerateSettlementNo()

	assert.True(t, strings.HasPrefix(a, "STL"))
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(a), 64)
}
