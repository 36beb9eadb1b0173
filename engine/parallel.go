// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"sync"

	"github.com/ava-labs/vmharness/types"
)

var _ ParallelBlockExecutor = (*ParallelExecutor)(nil)

// ParallelExecutor is the concurrency-optimized execution path. Pending
// transactions execute optimistically against the committed state on a
// worker pool, with every read tracked; each round then commits, in input
// order, the longest prefix whose reads do not overlap the writes committed
// earlier in the same round, and re-executes the rest. The first pending
// transaction always commits, so every round makes progress, and committing
// strictly in input order keeps the results identical to sequential
// execution.
type ParallelExecutor struct{}

func NewParallelExecutor() *ParallelExecutor {
	return &ParallelExecutor{}
}

type speculation struct {
	index  int
	reads  map[types.StateKey]bool
	output types.TransactionOutput
	err    error
}

func (e *ParallelExecutor) ExecuteBlock(
	txns []types.Transaction,
	view types.ReadView,
	workers int,
) ([]types.TransactionOutput, error) {
	if workers < 1 {
		workers = 1
	}

	outputs := make([]types.TransactionOutput, len(txns))
	committed := newOverlayView(view)

	pending := make([]int, len(txns))
	for i := range txns {
		pending[i] = i
	}

	for len(pending) > 0 {
		reports := speculate(committed, txns, pending, workers)

		written := make(map[types.StateKey]bool)
		committedCount := 0
		for _, r := range reports {
			if readsOverlap(r.reads, written) {
				// Stale read; this and everything after it re-executes
				// next round against the advanced committed state.
				break
			}
			if r.err != nil {
				return nil, r.err
			}
			outputs[r.index] = r.output
			if r.output.Status.Kind == types.StatusKept {
				committed.apply(r.output.WriteSet)
				for _, op := range r.output.WriteSet {
					written[op.Key] = true
				}
			}
			committedCount++
		}
		pending = pending[committedCount:]
	}

	return outputs, nil
}

// speculate executes every pending transaction concurrently against the
// same committed view, returning reports in pending order. The committed
// view is not mutated until all workers have joined.
func speculate(view types.ReadView, txns []types.Transaction, pending []int, workers int) []speculation {
	reports := make([]speculation, len(pending))

	jobs := make(chan int)
	wg := sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				idx := pending[pos]
				proxy := newTrackingView(view)
				out, err := evalTransaction(proxy, txns[idx])
				reports[pos] = speculation{
					index:  idx,
					reads:  proxy.reads,
					output: out,
					err:    err,
				}
			}
		}()
	}
	for pos := range pending {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()

	return reports
}

func readsOverlap(reads map[types.StateKey]bool, written map[types.StateKey]bool) bool {
	for key := range reads {
		if written[key] {
			return true
		}
	}
	return false
}

// trackingView records every key a transaction reads, hits and misses both.
// Each proxy serves a single goroutine.
type trackingView struct {
	view  types.ReadView
	reads map[types.StateKey]bool
}

func newTrackingView(view types.ReadView) *trackingView {
	return &trackingView{view: view, reads: make(map[types.StateKey]bool)}
}

func (t *trackingView) Get(key types.StateKey) ([]byte, error) {
	t.reads[key] = true
	return t.view.Get(key)
}
