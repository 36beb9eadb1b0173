// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package harness

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/stretchr/testify/assert"

	"github.com/ava-labs/vmharness/account"
	"github.com/ava-labs/vmharness/engine"
	"github.com/ava-labs/vmharness/genesis"
	"github.com/ava-labs/vmharness/trace"
	"github.com/ava-labs/vmharness/types"
)

func TestSimpleTransfer(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	accounts := h.CreateAccounts(2, 1000, 0)
	a, b := accounts[0], accounts[1]

	out := h.ExecuteAndApply(a.SignedTransfer(b.Address(), 100, 0))
	assert.True(out.Status.IsKeptSuccess())
	assert.Len(out.Events, 2)
	assert.Equal(types.SentEventKey(a.Address()), out.Events[0].Key)
	assert.Equal(types.ReceivedEventKey(b.Address()), out.Events[1].Key)

	// Both events carry the transfer's details
	transfer := types.TransferEvent{}
	assert.NoError(types.Unmarshal(out.Events[0].Data, &transfer))
	assert.Equal(a.Address(), transfer.From)
	assert.Equal(b.Address(), transfer.To)
	assert.Equal(uint64(100), transfer.Amount)

	balanceA, err := h.ReadBalanceResource(a)
	assert.NoError(err)
	assert.Equal(uint64(900), balanceA.Coins)
	balanceB, err := h.ReadBalanceResource(b)
	assert.NoError(err)
	assert.Equal(uint64(1100), balanceB.Coins)

	// Sequence number advanced; event counters moved on both sides
	acctA, err := h.ReadAccountResource(a)
	assert.NoError(err)
	assert.Equal(uint64(1), acctA.SequenceNumber)
	eventsA, err := h.ReadTransferEvents(a)
	assert.NoError(err)
	assert.Equal(uint64(1), eventsA.Sent)
	eventsB, err := h.ReadTransferEvents(b)
	assert.NoError(err)
	assert.Equal(uint64(1), eventsB.Received)
}

func TestExecuteDoesNotApply(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	accounts := h.CreateAccounts(2, 1000, 0)
	out := h.ExecuteTransaction(accounts[0].SignedTransfer(accounts[1].Address(), 100, 0))
	assert.True(out.Status.IsKeptSuccess())

	// Nothing landed
	balance, err := h.ReadBalanceResource(accounts[0])
	assert.NoError(err)
	assert.Equal(uint64(1000), balance.Coins)
}

func TestExecuteAndApplyRejectsDiscard(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	receiver := h.CreateAccounts(1, 1000, 0)[0]
	stranger := account.FromAddress(types.Address{0xab})

	assert.Panics(func() {
		h.ExecuteAndApply(stranger.SignedTransfer(receiver.Address(), 1, 0))
	})
}

func TestExecuteAndApplyRejectsAbort(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	accounts := h.CreateAccounts(2, 10, 0)
	assert.Panics(func() {
		h.ExecuteAndApply(accounts[0].SignedTransfer(accounts[1].Address(), 1000, 0))
	})
}

// divergentParallel mimics a buggy concurrent engine by tampering with one
// output of the honest one.
type divergentParallel struct {
	inner engine.ParallelBlockExecutor
}

func (d *divergentParallel) ExecuteBlock(
	txns []types.Transaction,
	view types.ReadView,
	workers int,
) ([]types.TransactionOutput, error) {
	outputs, err := d.inner.ExecuteBlock(txns, view, workers)
	if err == nil && len(outputs) > 0 {
		outputs[0].GasUsed++
	}
	return outputs, err
}

func TestDivergentPathsAreFatal(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})
	accounts := h.CreateAccounts(2, 1000, 0)

	h.SetExecutors(engine.NewSerialExecutor(), &divergentParallel{inner: engine.NewParallelExecutor()})
	assert.Panics(func() {
		h.ExecuteBlock([]*types.SignedTransaction{
			accounts[0].SignedTransfer(accounts[1].Address(), 5, 0),
		})
	})
}

func TestBlockProgression(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	assert.Zero(h.BlockTime())
	h.NewBlock()
	assert.Equal(uint64(1), h.BlockTime())

	h.NewBlockWithTimestamp(100)
	assert.Equal(uint64(100), h.BlockTime())

	// Two blocks landed
	blob, err := h.ReadFromKey(types.ResourceKey(types.CoreCodeAddress, types.BlockTag))
	assert.NoError(err)
	block := types.BlockResource{}
	assert.NoError(types.Unmarshal(blob, &block))
	assert.Equal(uint64(2), block.Height)
	assert.Equal(uint64(100), block.Timestamp)

	// Time never goes backwards
	assert.Panics(func() { h.NewBlockWithTimestamp(50) })
	assert.Panics(func() { h.SetBlockTime(50) })
}

func TestNewBlockNeedsGenesis(t *testing.T) {
	assert := assert.New(t)

	// No validator set on chain
	h := StdlibOnly(Config{})
	assert.Panics(func() { h.NewBlock() })
}

func TestDirectInvocation(t *testing.T) {
	assert := assert.New(t)
	h := StdlibOnly(Config{})
	addr := types.Address{42}

	amount := make([]byte, 8)
	binary.BigEndian.PutUint64(amount, 250)

	h.Exec("Account", "create_account", nil, [][]byte{addr[:]})
	h.Exec("Coin", "mint", nil, [][]byte{addr[:], amount})

	balance, err := h.ReadBalanceResourceAt(addr)
	assert.NoError(err)
	assert.Equal(uint64(250), balance.Coins)

	acct, err := h.ReadAccountResourceAt(addr)
	assert.NoError(err)
	assert.Zero(acct.SequenceNumber)

	// The created account can transact normally
	receiver := h.CreateAccounts(1, 0, 0)[0]
	out := h.ExecuteAndApply(account.FromAddress(addr).SignedTransfer(receiver.Address(), 50, 0))
	assert.True(out.Status.IsKeptSuccess())
	balance, err = h.ReadBalanceResourceAt(addr)
	assert.NoError(err)
	assert.Equal(uint64(200), balance.Coins)
}

func TestTryExecLeavesStateAlone(t *testing.T) {
	assert := assert.New(t)
	h := StdlibOnly(Config{})
	addr := types.Address{43}

	ws, err := h.TryExec("Account", "create_account", nil, [][]byte{addr[:]})
	assert.NoError(err)
	assert.NotEmpty(ws)

	// Not applied
	_, err = h.ReadAccountResourceAt(addr)
	assert.Equal(database.ErrNotFound, err)

	// Unknown entry points surface as errors, not panics
	_, err = h.TryExec("Account", "freeze", nil, nil)
	assert.Error(err)
}

func TestVerifyTransaction(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})
	accounts := h.CreateAccounts(2, 100, 0)

	assert.True(h.VerifyTransaction(accounts[0].SignedTransfer(accounts[1].Address(), 1, 0)).Ok())

	res := h.VerifyTransaction(accounts[0].SignedTransfer(accounts[1].Address(), 1, 9))
	assert.Equal(engine.ReasonSeqTooNew, res.DiscardReason)
}

func TestFromSavedGenesis(t *testing.T) {
	assert := assert.New(t)

	cs, err := genesis.Generate(genesis.StdlibModules(), genesis.OpenPublishing, 2, false)
	assert.NoError(err)
	blob, err := types.Marshal(&cs)
	assert.NoError(err)

	h := FromSavedGenesis(Config{}, blob)
	version, err := types.FetchVersion(h.StateView())
	assert.NoError(err)
	assert.Equal(uint64(1), version.Major)
	set, err := types.FetchValidatorSet(h.StateView())
	assert.NoError(err)
	assert.Len(set.Validators, 2)

	// Malformed blobs abort setup
	assert.Panics(func() { FromSavedGenesis(Config{}, []byte{0xba, 0xad}) })
}

func TestPublishingPolicyOption(t *testing.T) {
	assert := assert.New(t)

	h := WithPublishingPolicy(Config{}, genesis.OpenPublishing)
	assert.NotNil(h)

	assert.Panics(func() { WithPublishingPolicy(Config{}, genesis.RestrictedPublishing) })
}

func TestNoGenesisIsEmpty(t *testing.T) {
	assert := assert.New(t)
	h := NoGenesis(Config{})

	_, err := types.FetchVersion(h.StateView())
	assert.Equal(database.ErrNotFound, err)
}

func TestTracingEndToEnd(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	h := OpenGenesis(Config{TraceRoot: root})
	accounts := h.CreateAccounts(2, 1000, 0)

	h.SetGoldenFile("tracing_end_to_end")
	dir := filepath.Join(root, "tracing_end_to_end")

	name, err := os.ReadFile(filepath.Join(dir, trace.NameFile))
	assert.NoError(err)
	assert.Equal("tracing_end_to_end::1", string(name))

	h.ExecuteAndApply(accounts[0].SignedTransfer(accounts[1].Address(), 10, 0))
	h.ExecuteAndApply(accounts[0].SignedTransfer(accounts[1].Address(), 20, 1))

	// One snapshot, input, output, and mapping per executed block
	for _, sub := range []string{trace.DataDir, trace.InputDir, trace.OutputDir, trace.MetaDir} {
		dirEntries, err := os.ReadDir(filepath.Join(dir, sub))
		assert.NoError(err)
		assert.Len(dirEntries, 2, sub)
	}

	// The second block's mapping points at the second records
	blob, err := os.ReadFile(filepath.Join(dir, trace.MetaDir, "1"))
	assert.NoError(err)
	mapping := trace.SeqMapping{}
	assert.NoError(types.Unmarshal(blob, &mapping))
	assert.Equal(uint64(1), mapping.Snapshot)
	assert.Equal([]uint64{1}, mapping.Inputs)
	assert.Equal([]uint64{1}, mapping.Outputs)

	// The recorded output round-trips
	blob, err = os.ReadFile(filepath.Join(dir, trace.OutputDir, "1"))
	assert.NoError(err)
	out := types.TransactionOutput{}
	assert.NoError(types.Unmarshal(blob, &out))
	assert.True(out.Status.IsKeptSuccess())
}

func TestTracingRecordsVMFailure(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	h := OpenGenesis(Config{TraceRoot: root})
	sender := h.CreateAccounts(1, 100, 0)[0]

	h.SetGoldenFile("tracing_vm_failure")

	// A payload the engine does not understand is a VM-level failure
	_, err := h.ExecuteTransactionBlock([]types.Transaction{
		&types.SignedTransaction{Sender: sender.Address(), GasLimit: 1000},
	})
	assert.Error(err)

	msg, err := os.ReadFile(filepath.Join(root, "tracing_vm_failure", trace.ErrorFile))
	assert.NoError(err)
	assert.Contains(string(msg), "unknown payload type")

	// Inputs were recorded, outputs were not
	inputs, err := os.ReadDir(filepath.Join(root, "tracing_vm_failure", trace.InputDir))
	assert.NoError(err)
	assert.Len(inputs, 1)
	outputs, err := os.ReadDir(filepath.Join(root, "tracing_vm_failure", trace.OutputDir))
	assert.NoError(err)
	assert.Empty(outputs)
}

func TestParallelGenesisMarker(t *testing.T) {
	assert := assert.New(t)
	h := ParallelGenesis(Config{})

	blob, err := h.ReadFromKey(types.ResourceKey(types.CoreCodeAddress, types.ParallelExecutionTag))
	assert.NoError(err)
	marker := genesis.ParallelExecutionResource{}
	assert.NoError(types.Unmarshal(blob, &marker))
	assert.True(marker.Enabled)
}
