// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/ava-labs/vmharness/types"
)

var _ Validator = (*TxnValidator)(nil)

// TxnValidator runs admission checks: the sender account must exist, the
// signature must be present, and the sequence number must match. Payload
// semantics are not evaluated.
type TxnValidator struct{}

func NewTxnValidator() *TxnValidator {
	return &TxnValidator{}
}

func (v *TxnValidator) ValidateTransaction(txn *types.SignedTransaction, view types.ReadView) ValidationResult {
	if len(txn.Signature) == 0 {
		return ValidationResult{DiscardReason: ReasonInvalidSignature}
	}

	sender := types.AccountResource{}
	found, err := readResource(view, txn.Sender, types.AccountTag, &sender)
	if err != nil || !found {
		return ValidationResult{DiscardReason: ReasonAccountNotFound}
	}
	if txn.SequenceNumber < sender.SequenceNumber {
		return ValidationResult{DiscardReason: ReasonSeqTooOld}
	}
	if txn.SequenceNumber > sender.SequenceNumber {
		return ValidationResult{DiscardReason: ReasonSeqTooNew}
	}
	return ValidationResult{}
}
