// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine defines the execution-engine boundary the harness
// orchestrates across, plus a deterministic reference engine implementing
// both sides of it: a sequential executor and a concurrency-optimized one.
// The two are independent implementations of the same contract; the harness
// runs both and compares.
package engine

import (
	"github.com/ava-labs/vmharness/types"
)

// BlockExecutor executes an ordered block of transactions against a
// read-only state view and returns one output per transaction, in input
// order. It never mutates the view; all intended mutations are described by
// the outputs' write sets. A returned error is a VM-level failure covering
// the whole block.
type BlockExecutor interface {
	ExecuteBlock(txns []types.Transaction, view types.ReadView) ([]types.TransactionOutput, error)
}

// ParallelBlockExecutor is the concurrency-optimized form of the same
// contract. [workers] bounds internal parallelism; results must be
// indistinguishable from sequential execution.
type ParallelBlockExecutor interface {
	ExecuteBlock(txns []types.Transaction, view types.ReadView, workers int) ([]types.TransactionOutput, error)
}

// Validator runs a transaction through admission checks without executing
// it.
type Validator interface {
	ValidateTransaction(txn *types.SignedTransaction, view types.ReadView) ValidationResult
}

// ValidationResult carries the discard reason of a rejected transaction, or
// nothing for an admissible one.
type ValidationResult struct {
	DiscardReason string
}

// Ok reports whether the transaction passed validation.
func (r ValidationResult) Ok() bool {
	return r.DiscardReason == ""
}

// Discard reasons shared by validation and execution.
const (
	ReasonAccountNotFound  = "SENDING_ACCOUNT_DOES_NOT_EXIST"
	ReasonSeqTooOld        = "SEQUENCE_NUMBER_TOO_OLD"
	ReasonSeqTooNew        = "SEQUENCE_NUMBER_TOO_NEW"
	ReasonInvalidSignature = "INVALID_SIGNATURE"
)
