package pools

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBatchedPreservesOrder(t *testing.T) {
	const numFetches = 23
	fns := make([]func() (int, error), numFetches)
	for i := range fns {
		val := i * 10
		fns[i] = func() (int, error) {
			return val, nil
		}
	}
	results, err := fetchBatched(fns)
	require.NoError(t, err)
	require.Len(t, results, numFetches)
	for i, result := range results {
		assert.Equal(t, i*10, result, "result %d out of order", i)
	}
}

func TestFetchBatchedConcurrencyBound(t *testing.T) {
	var mu sync.Mutex
	var inFlight, maxInFlight int

	fns := make([]func() (struct{}, error), 35)
	for i := range fns {
		fns[i] = func() (struct{}, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				inFlight--
				mu.Unlock()
			}()
			return struct{}{}, nil
		}
	}
	_, err := fetchBatched(fns)
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInFlight, fetchBatchSize)
}

func TestFetchBatchedFailureAborts(t *testing.T) {
	var calls atomic.Int32
	fns := make([]func() (int, error), 30)
	for i := range fns {
		idx := i
		fns[i] = func() (int, error) {
			calls.Add(1)
			if idx == 5 {
				return 0, fmt.Errorf("fetch %d: %w", idx, ErrValidatorNotFound)
			}
			return idx, nil
		}
	}
	results, err := fetchBatched(fns)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidatorNotFound))
	assert.Nil(t, results, "a failed batch must not yield a partial list")
	// later batches never ran
	assert.LessOrEqual(t, calls.Load(), int32(fetchBatchSize))
}

func TestFetchBatchedEmpty(t *testing.T) {
	results, err := fetchBatched[int](nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
