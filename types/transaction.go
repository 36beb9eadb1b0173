// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

var (
	_ Transaction = (*SignedTransaction)(nil)
	_ Transaction = (*BlockMetadata)(nil)

	_ Payload = (*TransferPayload)(nil)
)

// Transaction is either a user-submitted signed transaction or a synthetic
// block-boundary record. Implementations are immutable once constructed.
type Transaction interface {
	isTransaction()
}

// SignedTransaction is a user transaction.
type SignedTransaction struct {
	Sender         Address `serialize:"true"`
	SequenceNumber uint64  `serialize:"true"`
	Payload        Payload `serialize:"true"`
	GasLimit       uint64  `serialize:"true"`
	PublicKey      []byte  `serialize:"true"`
	Signature      []byte  `serialize:"true"`
}

func (*SignedTransaction) isTransaction() {}

// Payload is what a signed transaction asks the engine to do.
type Payload interface {
	isPayload()
}

// TransferPayload moves [Amount] coins from the sender to [To].
type TransferPayload struct {
	To     Address `serialize:"true"`
	Amount uint64  `serialize:"true"`
}

func (*TransferPayload) isPayload() {}

// BlockMetadata is the synthetic transaction that opens a new block. It is
// never signed and never enters the mempool; the harness constructs it
// directly.
type BlockMetadata struct {
	// ProposerHash is zero for harness-generated blocks.
	ProposerHash ids.ID `serialize:"true"`
	Epoch        uint64 `serialize:"true"`
	Round        uint64 `serialize:"true"`
	// AbsentVotes holds one non-participation flag per validator slot
	// (plus one leading slot); false means the validator participated.
	AbsentVotes []bool `serialize:"true"`
	Timestamp   uint64 `serialize:"true"`
}

func (*BlockMetadata) isTransaction() {}

// UserTransactions wraps signed transactions for block execution.
func UserTransactions(txns []*SignedTransaction) []Transaction {
	block := make([]Transaction, len(txns))
	for i, txn := range txns {
		block[i] = txn
	}
	return block
}

// StatusKind is the outcome class of an executed transaction.
type StatusKind uint8

const (
	// StatusKept means the transaction was accepted; the nested execution
	// status says whether it succeeded.
	StatusKept StatusKind = iota
	// StatusDiscarded means the transaction was permanently rejected.
	StatusDiscarded
	// StatusRetry means the transaction must be re-submitted.
	StatusRetry
)

// ExecutionStatus is the nested success/failure status of a kept
// transaction.
type ExecutionStatus uint8

const (
	ExecutionSuccess ExecutionStatus = iota
	ExecutionFailure
)

func (s ExecutionStatus) String() string {
	if s == ExecutionSuccess {
		return "success"
	}
	return "failure"
}

// TransactionStatus is the tagged outcome of one transaction.
type TransactionStatus struct {
	Kind      StatusKind      `serialize:"true"`
	Execution ExecutionStatus `serialize:"true"`
	Reason    string          `serialize:"true"`
}

// Keep returns a kept status with the given execution status.
func Keep(es ExecutionStatus) TransactionStatus {
	return TransactionStatus{Kind: StatusKept, Execution: es}
}

// Discard returns a discarded status carrying the rejection reason.
func Discard(reason string) TransactionStatus {
	return TransactionStatus{Kind: StatusDiscarded, Reason: reason}
}

// Retry returns a retry status.
func Retry() TransactionStatus {
	return TransactionStatus{Kind: StatusRetry}
}

// IsKeptSuccess reports whether the transaction was kept and succeeded.
func (s TransactionStatus) IsKeptSuccess() bool {
	return s.Kind == StatusKept && s.Execution == ExecutionSuccess
}

func (s TransactionStatus) String() string {
	switch s.Kind {
	case StatusKept:
		return fmt.Sprintf("kept(%s)", s.Execution)
	case StatusDiscarded:
		return fmt.Sprintf("discarded(%s)", s.Reason)
	default:
		return "retry"
	}
}

// TransactionOutput is the observable result of executing one transaction.
// The write set is not applied to the ledger automatically; that is the
// caller's decision.
type TransactionOutput struct {
	WriteSet WriteSet          `serialize:"true"`
	Events   []Event           `serialize:"true"`
	GasUsed  uint64            `serialize:"true"`
	Status   TransactionStatus `serialize:"true"`
}
