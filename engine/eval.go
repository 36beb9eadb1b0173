// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/vmharness/types"
)

// Deterministic gas costs. A kept transfer charges the same gas whether it
// succeeds or aborts; discarded transactions and block prologues are free.
const transferGas uint64 = 24

var (
	errUnknownTransaction = errors.New("unknown transaction type")
	errUnknownPayload     = errors.New("unknown payload type")
)

// evalTransaction executes one transaction against [view] and returns its
// output. It is the single source of execution semantics: both the serial
// and the parallel executor call it, so their outputs can only differ if
// their state-visibility scheduling differs. All reads go through [view] so
// callers can interpose tracking proxies. A returned error is a VM-level
// failure, not a transaction outcome.
func evalTransaction(view types.ReadView, txn types.Transaction) (types.TransactionOutput, error) {
	switch t := txn.(type) {
	case *types.SignedTransaction:
		return evalUserTransaction(view, t)
	case *types.BlockMetadata:
		return evalBlockMetadata(view, t)
	default:
		return types.TransactionOutput{}, fmt.Errorf("%w: %T", errUnknownTransaction, txn)
	}
}

func evalBlockMetadata(view types.ReadView, bm *types.BlockMetadata) (types.TransactionOutput, error) {
	prev := types.BlockResource{}
	if _, err := readResource(view, types.CoreCodeAddress, types.BlockTag, &prev); err != nil {
		return types.TransactionOutput{}, err
	}

	next := types.BlockResource{Height: prev.Height + 1, Timestamp: bm.Timestamp}
	blockBlob, err := types.Marshal(&next)
	if err != nil {
		return types.TransactionOutput{}, err
	}
	eventBlob, err := types.Marshal(&types.NewBlockEvent{
		Round:     bm.Round,
		Height:    next.Height,
		Timestamp: bm.Timestamp,
	})
	if err != nil {
		return types.TransactionOutput{}, err
	}

	return types.TransactionOutput{
		WriteSet: types.WriteSet{
			types.NewWrite(types.ResourceKey(types.CoreCodeAddress, types.BlockTag), blockBlob),
		},
		Events: []types.Event{{
			Key:      types.NewBlockEventKey(),
			Sequence: prev.Height,
			Data:     eventBlob,
		}},
		Status: types.Keep(types.ExecutionSuccess),
	}, nil
}

func evalUserTransaction(view types.ReadView, txn *types.SignedTransaction) (types.TransactionOutput, error) {
	sender := types.AccountResource{}
	found, err := readResource(view, txn.Sender, types.AccountTag, &sender)
	if err != nil {
		return types.TransactionOutput{}, err
	}
	if !found {
		return discarded(ReasonAccountNotFound), nil
	}
	if txn.SequenceNumber < sender.SequenceNumber {
		return discarded(ReasonSeqTooOld), nil
	}
	if txn.SequenceNumber > sender.SequenceNumber {
		return discarded(ReasonSeqTooNew), nil
	}

	switch p := txn.Payload.(type) {
	case *types.TransferPayload:
		return evalTransfer(view, txn, sender, p)
	default:
		return types.TransactionOutput{}, fmt.Errorf("%w: %T", errUnknownPayload, txn.Payload)
	}
}

func evalTransfer(
	view types.ReadView,
	txn *types.SignedTransaction,
	sender types.AccountResource,
	p *types.TransferPayload,
) (types.TransactionOutput, error) {
	seqBump, err := bumpSequence(txn.Sender, sender)
	if err != nil {
		return types.TransactionOutput{}, err
	}

	senderBalance := types.BalanceResource{}
	found, err := readResource(view, txn.Sender, types.BalanceTag, &senderBalance)
	if err != nil {
		return types.TransactionOutput{}, err
	}
	if !found || senderBalance.Coins < p.Amount {
		return aborted(seqBump), nil
	}
	if p.To == txn.Sender {
		return evalSelfTransfer(view, txn, seqBump, senderBalance, p)
	}
	receiverBalance := types.BalanceResource{}
	found, err = readResource(view, p.To, types.BalanceTag, &receiverBalance)
	if err != nil {
		return types.TransactionOutput{}, err
	}
	if !found {
		// Transfers never create the receiving account.
		return aborted(seqBump), nil
	}
	if receiverBalance.Coins+p.Amount < receiverBalance.Coins {
		// The credit must not wrap.
		return aborted(seqBump), nil
	}

	senderEvents := types.TransferEventsResource{}
	if _, err := readResource(view, txn.Sender, types.TransferEventsTag, &senderEvents); err != nil {
		return types.TransactionOutput{}, err
	}
	receiverEvents := types.TransferEventsResource{}
	if _, err := readResource(view, p.To, types.TransferEventsTag, &receiverEvents); err != nil {
		return types.TransactionOutput{}, err
	}

	ws := types.WriteSet{seqBump}
	ws, err = appendResource(ws, txn.Sender, types.BalanceTag,
		&types.BalanceResource{Coins: senderBalance.Coins - p.Amount})
	if err != nil {
		return types.TransactionOutput{}, err
	}
	ws, err = appendResource(ws, p.To, types.BalanceTag,
		&types.BalanceResource{Coins: receiverBalance.Coins + p.Amount})
	if err != nil {
		return types.TransactionOutput{}, err
	}
	ws, err = appendResource(ws, txn.Sender, types.TransferEventsTag,
		&types.TransferEventsResource{Sent: senderEvents.Sent + 1, Received: senderEvents.Received})
	if err != nil {
		return types.TransactionOutput{}, err
	}
	ws, err = appendResource(ws, p.To, types.TransferEventsTag,
		&types.TransferEventsResource{Sent: receiverEvents.Sent, Received: receiverEvents.Received + 1})
	if err != nil {
		return types.TransactionOutput{}, err
	}

	eventBlob, err := types.Marshal(&types.TransferEvent{From: txn.Sender, To: p.To, Amount: p.Amount})
	if err != nil {
		return types.TransactionOutput{}, err
	}

	return types.TransactionOutput{
		WriteSet: ws,
		Events: []types.Event{
			{Key: types.SentEventKey(txn.Sender), Sequence: senderEvents.Sent, Data: eventBlob},
			{Key: types.ReceivedEventKey(p.To), Sequence: receiverEvents.Received, Data: eventBlob},
		},
		GasUsed: transferGas,
		Status:  types.Keep(types.ExecutionSuccess),
	}, nil
}

// evalSelfTransfer handles a transfer whose sender and receiver are the
// same account. The balance and transfer-events slots alias, so the write
// set must carry one write per slot: the balance is unchanged and the
// events resource advances both counters. Emitting two writes computed
// from the pre-transaction values would let the later one clobber the
// earlier under last-write-wins.
func evalSelfTransfer(
	view types.ReadView,
	txn *types.SignedTransaction,
	seqBump types.WriteOp,
	balance types.BalanceResource,
	p *types.TransferPayload,
) (types.TransactionOutput, error) {
	events := types.TransferEventsResource{}
	if _, err := readResource(view, txn.Sender, types.TransferEventsTag, &events); err != nil {
		return types.TransactionOutput{}, err
	}

	ws := types.WriteSet{seqBump}
	ws, err := appendResource(ws, txn.Sender, types.BalanceTag,
		&types.BalanceResource{Coins: balance.Coins})
	if err != nil {
		return types.TransactionOutput{}, err
	}
	ws, err = appendResource(ws, txn.Sender, types.TransferEventsTag,
		&types.TransferEventsResource{Sent: events.Sent + 1, Received: events.Received + 1})
	if err != nil {
		return types.TransactionOutput{}, err
	}

	eventBlob, err := types.Marshal(&types.TransferEvent{From: txn.Sender, To: p.To, Amount: p.Amount})
	if err != nil {
		return types.TransactionOutput{}, err
	}

	return types.TransactionOutput{
		WriteSet: ws,
		Events: []types.Event{
			{Key: types.SentEventKey(txn.Sender), Sequence: events.Sent, Data: eventBlob},
			{Key: types.ReceivedEventKey(txn.Sender), Sequence: events.Received, Data: eventBlob},
		},
		GasUsed: transferGas,
		Status:  types.Keep(types.ExecutionSuccess),
	}, nil
}

// bumpSequence returns the write advancing the sender's sequence number.
// Every kept outcome carries it, success or abort.
func bumpSequence(addr types.Address, acct types.AccountResource) (types.WriteOp, error) {
	blob, err := types.Marshal(&types.AccountResource{
		SequenceNumber:    acct.SequenceNumber + 1,
		AuthenticationKey: acct.AuthenticationKey,
	})
	if err != nil {
		return types.WriteOp{}, err
	}
	return types.NewWrite(types.ResourceKey(addr, types.AccountTag), blob), nil
}

func discarded(reason string) types.TransactionOutput {
	return types.TransactionOutput{Status: types.Discard(reason)}
}

func aborted(seqBump types.WriteOp) types.TransactionOutput {
	return types.TransactionOutput{
		WriteSet: types.WriteSet{seqBump},
		GasUsed:  transferGas,
		Status:   types.Keep(types.ExecutionFailure),
	}
}

func appendResource(ws types.WriteSet, addr types.Address, tag string, value interface{}) (types.WriteSet, error) {
	blob, err := types.Marshal(value)
	if err != nil {
		return nil, err
	}
	return append(ws, types.NewWrite(types.ResourceKey(addr, tag), blob)), nil
}

// readResource decodes the [tag] resource of [addr] into [out]. It reports
// found=false for a slot that was never written and fails only on decode or
// storage errors.
func readResource(view types.ReadView, addr types.Address, tag string, out interface{}) (bool, error) {
	blob, err := view.Get(types.ResourceKey(addr, tag))
	if err == database.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, types.Unmarshal(blob, out)
}
