package pools

import (
	"github.com/mailgun/holster/v4/syncutil"
)

// fetchBatchSize bounds how many reads hit the node at once.
const fetchBatchSize = 10

// fetchBatched runs the passed fetch funcs in fixed-size batches - full
// fan-out within a batch, strict sequencing between batches (batch k+1 does
// not start until batch k fully resolved).  Results are returned in input
// order regardless of completion order.  Any single failure aborts the whole
// operation - no partial list is ever returned.
func fetchBatched[T any](fns []func() (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	for start := 0; start < len(fns); start += fetchBatchSize {
		end := min(start+fetchBatchSize, len(fns))
		var wg syncutil.WaitGroup
		for i := start; i < end; i++ {
			wg.Run(func(val any) error {
				idx := val.(int)
				res, err := fns[idx]()
				if err != nil {
					return err
				}
				results[idx] = res
				return nil
			}, i)
		}
		if errs := wg.Wait(); errs != nil {
			return nil, errs[0]
		}
	}
	return results, nil
}
