// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/vmharness/types"
)

var _ BlockExecutor = (*SerialExecutor)(nil)

// SerialExecutor is the reference execution path. It runs the block one
// transaction at a time, accumulating kept write sets in an overlay so each
// transaction observes the effects of every kept transaction before it.
type SerialExecutor struct{}

func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{}
}

func (e *SerialExecutor) ExecuteBlock(txns []types.Transaction, view types.ReadView) ([]types.TransactionOutput, error) {
	overlay := newOverlayView(view)
	outputs := make([]types.TransactionOutput, 0, len(txns))
	for _, txn := range txns {
		out, err := evalTransaction(overlay, txn)
		if err != nil {
			return nil, err
		}
		if out.Status.Kind == types.StatusKept {
			overlay.apply(out.WriteSet)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// overlayView layers uncommitted block-local writes over a base view. The
// base is never mutated.
type overlayView struct {
	base    types.ReadView
	entries map[types.StateKey]overlayEntry
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

func newOverlayView(base types.ReadView) *overlayView {
	return &overlayView{
		base:    base,
		entries: make(map[types.StateKey]overlayEntry),
	}
}

func (o *overlayView) Get(key types.StateKey) ([]byte, error) {
	if e, ok := o.entries[key]; ok {
		if e.deleted {
			return nil, database.ErrNotFound
		}
		return e.value, nil
	}
	return o.base.Get(key)
}

func (o *overlayView) apply(ws types.WriteSet) {
	for _, op := range ws {
		switch op.Kind {
		case types.WriteValue:
			o.entries[op.Key] = overlayEntry{value: op.Value}
		case types.DeleteValue:
			o.entries[op.Key] = overlayEntry{deleted: true}
		}
	}
}
