// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package harness

import (
	"reflect"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/vmharness/engine"
	"github.com/ava-labs/vmharness/trace"
	"github.com/ava-labs/vmharness/types"
)

// ExecuteTransactionBlock executes [txns] as one block through both
// execution paths and asserts the results are identical before returning
// them. Neither path mutates the ledger; applying any output's write set is
// the caller's decision. A returned error is a VM-level failure (which both
// paths must agree on); divergence between the paths is fatal.
func (h *Harness) ExecuteTransactionBlock(txns []types.Transaction) ([]types.TransactionOutput, error) {
	mapping := trace.SeqMapping{}
	if h.recorder != nil {
		snap, err := h.state.Snapshot()
		if err != nil {
			fatalf("snapshotting state for trace: %v", err)
		}
		mapping.Snapshot = h.mustRecord(h.recorder.RecordSnapshot(snap))
		for _, txn := range txns {
			mapping.Inputs = append(mapping.Inputs, h.mustRecord(h.recorder.RecordInput(txn)))
		}
	}

	outputs, execErr := h.seq.ExecuteBlock(txns, h.state)
	parOutputs, parErr := h.par.ExecuteBlock(txns, h.state, h.workers())
	assertPathsAgree(outputs, execErr, parOutputs, parErr)

	if h.golden != nil {
		h.golden.logBlock(outputs, execErr)
	}

	if h.recorder != nil {
		if execErr == nil {
			for _, out := range outputs {
				mapping.Outputs = append(mapping.Outputs, h.mustRecord(h.recorder.RecordOutput(out)))
			}
		} else if err := h.recorder.RecordError(execErr); err != nil {
			fatalf("recording the execution failure: %v", err)
		}
		if err := h.recorder.RecordMapping(mapping); err != nil {
			fatalf("recording the trace sequence mapping: %v", err)
		}
	}

	return outputs, execErr
}

// ExecuteBlock executes a block of user transactions. Typical tests call
// this and check the outputs; results are not applied to the ledger.
func (h *Harness) ExecuteBlock(txns []*types.SignedTransaction) ([]types.TransactionOutput, error) {
	return h.ExecuteTransactionBlock(types.UserTransactions(txns))
}

// ExecuteTransaction executes [txn] as a singleton block and returns its
// sole output.
func (h *Harness) ExecuteTransaction(txn *types.SignedTransaction) types.TransactionOutput {
	outputs, err := h.ExecuteBlock([]*types.SignedTransaction{txn})
	if err != nil {
		fatalf("the vm should not fail to start up: %v", err)
	}
	if len(outputs) != 1 {
		fatalf("a block with one transaction should have one output, got %d", len(outputs))
	}
	return outputs[0]
}

// ExecuteAndApply executes [txn] as a singleton block and applies the
// resulting write set to the ledger. Any outcome other than kept-success is
// fatal: this form is for tests that expect success by construction.
func (h *Harness) ExecuteAndApply(txn *types.SignedTransaction) types.TransactionOutput {
	outputs, err := h.ExecuteBlock([]*types.SignedTransaction{txn})
	if err != nil {
		fatalf("executing transaction: %v", err)
	}
	if len(outputs) != 1 {
		fatalf("transaction outputs size mismatch: %d", len(outputs))
	}
	output := outputs[0]
	switch output.Status.Kind {
	case types.StatusKept:
		h.ApplyWriteSet(output.WriteSet)
		if output.Status.Execution != types.ExecutionSuccess {
			fatalf("transaction failed with %s", output.Status)
		}
		return output
	case types.StatusDiscarded:
		fatalf("transaction discarded with %s", output.Status.Reason)
	default:
		fatalf("transaction status is retry")
	}
	return types.TransactionOutput{} // unreachable
}

// NewBlock advances the chain one block, to block time + 1.
func (h *Harness) NewBlock() {
	h.NewBlockWithTimestamp(h.blockTime + 1)
}

// NewBlockWithTimestamp opens a new block at [timestamp]: it reads the
// validator set, executes a synthetic block-boundary transaction, checks
// that the expected block-start event came out, applies the result, and
// advances block time. Genesis must have run.
func (h *Harness) NewBlockWithTimestamp(timestamp uint64) {
	if timestamp < h.blockTime {
		fatalf("block time must not decrease: %d -> %d", h.blockTime, timestamp)
	}
	validatorSet, err := types.FetchValidatorSet(h.state)
	if err != nil {
		fatalf("unable to retrieve the validator set from storage: %v", err)
	}

	prologue := &types.BlockMetadata{
		ProposerHash: ids.Empty,
		Round:        1,
		AbsentVotes:  make([]bool, 1+len(validatorSet.Validators)),
		Timestamp:    timestamp,
	}
	outputs, err := h.ExecuteTransactionBlock([]types.Transaction{prologue})
	if err != nil {
		fatalf("executing the block prologue should succeed: %v", err)
	}
	if len(outputs) != 1 {
		fatalf("failed to get the execution result for the block prologue")
	}
	output := outputs[0]
	if !output.Status.IsKeptSuccess() {
		fatalf("block prologue finished with %s", output.Status)
	}

	// There might be more events behind it, but the block-start event
	// comes first.
	if len(output.Events) == 0 || output.Events[0].Key != types.NewBlockEventKey() {
		fatalf("block prologue did not emit the block-start event first")
	}
	event := types.NewBlockEvent{}
	if err := types.Unmarshal(output.Events[0].Data, &event); err != nil {
		fatalf("block-start event payload did not decode: %v", err)
	}

	h.ApplyWriteSet(output.WriteSet)
	h.blockTime = timestamp
}

// Exec invokes a module entry point directly and applies the resulting
// write set, aborting on any failure.
func (h *Harness) Exec(module string, function string, typeArgs []string, args [][]byte) {
	ws, err := h.TryExec(module, function, typeArgs, args)
	if err != nil {
		fatalf("error calling %s.%s: %v", module, function, err)
	}
	h.ApplyWriteSet(ws)
}

// TryExec invokes a module entry point directly over a fresh session
// against the current ledger state, skipping transaction validation,
// signature checking, and visibility rules, with unmetered gas. The
// resulting write set is returned without being applied; events from this
// path are discarded.
func (h *Harness) TryExec(module string, function string, typeArgs []string, args [][]byte) (types.WriteSet, error) {
	session := engine.NewSession(h.state)
	id := types.ModuleID{Address: types.CoreCodeAddress, Name: module}
	if err := session.ExecuteFunction(id, function, typeArgs, args); err != nil {
		return nil, err
	}
	changeSet, err := session.Finish()
	if err != nil {
		return nil, err
	}
	return changeSet.WriteSet, nil
}

func (h *Harness) mustRecord(seq uint64, err error) uint64 {
	if err != nil {
		fatalf("recording trace item: %v", err)
	}
	return seq
}

// assertPathsAgree is the harness's core correctness check: the sequential
// and parallel paths must produce structurally identical results. It exists
// to catch non-determinism or divergence introduced by concurrent
// execution, so a mismatch can never be downgraded to a warning.
func assertPathsAgree(
	seqOut []types.TransactionOutput, seqErr error,
	parOut []types.TransactionOutput, parErr error,
) {
	if (seqErr == nil) != (parErr == nil) {
		fatalf("execution paths diverged: sequential err=%v, parallel err=%v", seqErr, parErr)
	}
	if seqErr != nil {
		if seqErr.Error() != parErr.Error() {
			fatalf("execution paths diverged: sequential err=%q, parallel err=%q", seqErr, parErr)
		}
		return
	}
	if len(seqOut) != len(parOut) {
		fatalf("execution paths diverged: %d sequential outputs vs %d parallel", len(seqOut), len(parOut))
	}
	for i := range seqOut {
		if !reflect.DeepEqual(seqOut[i], parOut[i]) {
			fatalf("execution paths diverged at transaction %d: sequential %s, parallel %s",
				i, seqOut[i].Status, parOut[i].Status)
		}
	}
}
