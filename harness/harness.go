// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package harness provides a deterministic environment for executing and
// verifying transactions against an in-memory ledger. Every block runs
// through two independently implemented execution paths, a sequential
// reference path and a concurrency-optimized one, and the harness fails
// loudly if their results differ in any way.
package harness

import (
	"fmt"
	"runtime"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/version"

	"github.com/ava-labs/vmharness/account"
	"github.com/ava-labs/vmharness/engine"
	"github.com/ava-labs/vmharness/genesis"
	"github.com/ava-labs/vmharness/state"
	"github.com/ava-labs/vmharness/trace"
	"github.com/ava-labs/vmharness/types"
)

const (
	// Name of this package's tooling
	Name = "vmharness"
)

// Version of this harness
var Version = version.NewDefaultVersion(0, 1, 0)

// Config is resolved once at harness construction. There are no ad hoc
// environment lookups later.
type Config struct {
	// TraceRoot, when non-empty, arms deterministic tracing. Recording
	// starts when a golden-output name is assigned and stays on for the
	// harness's remaining lifetime.
	TraceRoot string

	// Workers bounds the concurrent execution path's parallelism. Zero
	// means the host's available hardware parallelism.
	Workers int
}

// Harness owns the ledger state view and orchestrates execution over it.
// One harness serves one logical caller; execute calls must not overlap.
type Harness struct {
	cfg       Config
	state     *state.View
	blockTime uint64
	golden    *goldenLog
	recorder  *trace.Recorder
	keys      *account.KeyGen
	seq       engine.BlockExecutor
	par       engine.ParallelBlockExecutor
	validator engine.Validator
}

// NoGenesis returns a harness with no state at all. The caller seeds state
// through ApplyWriteSet, AddModule, and friends.
func NoGenesis(cfg Config) *Harness {
	return &Harness{
		cfg:       cfg,
		state:     state.New(),
		keys:      account.NewKeyGen(),
		seq:       engine.NewSerialExecutor(),
		par:       engine.NewParallelExecutor(),
		validator: engine.NewTxnValidator(),
	}
}

// FromGenesis returns a harness bootstrapped by applying [ws] to an empty
// state view.
func FromGenesis(cfg Config, ws types.WriteSet) *Harness {
	h := NoGenesis(cfg)
	h.ApplyWriteSet(ws)
	return h
}

// FromSavedGenesis returns a harness bootstrapped from a serialized change
// set blob. Malformed input aborts test setup.
func FromSavedGenesis(cfg Config, blob []byte) *Harness {
	cs := types.ChangeSet{}
	if err := types.Unmarshal(blob, &cs); err != nil {
		fatalf("deserializing the saved genesis blob: %v", err)
	}
	return FromGenesis(cfg, cs.WriteSet)
}

// CustomGenesis returns a harness bootstrapped from generated genesis over
// the given module set, with [validators] pre-seeded validator accounts.
func CustomGenesis(cfg Config, modules []genesis.Module, validators int, policy genesis.PublishingPolicy) *Harness {
	cs, err := genesis.Generate(modules, policy, validators, false)
	if err != nil {
		fatalf("generating genesis: %v", err)
	}
	return FromGenesis(cfg, cs.WriteSet)
}

// OpenGenesis returns a harness with the standard modules published and
// open publishing.
func OpenGenesis(cfg Config) *Harness {
	return CustomGenesis(cfg, genesis.StdlibModules(), genesis.DefaultValidatorCount, genesis.OpenPublishing)
}

// WithPublishingPolicy is OpenGenesis with an explicit policy. Only open
// publishing is supported as a harness option.
func WithPublishingPolicy(cfg Config, policy genesis.PublishingPolicy) *Harness {
	if policy != genesis.OpenPublishing {
		fatalf("restricted publishing is not supported as a harness option")
	}
	return CustomGenesis(cfg, genesis.StdlibModules(), genesis.DefaultValidatorCount, policy)
}

// ParallelGenesis returns a harness whose genesis marks the chain as
// bootstrapped for parallel execution.
func ParallelGenesis(cfg Config) *Harness {
	cs, err := genesis.Generate(genesis.StdlibModules(), genesis.OpenPublishing, genesis.DefaultValidatorCount, true)
	if err != nil {
		fatalf("generating genesis: %v", err)
	}
	return FromGenesis(cfg, cs.WriteSet)
}

// StdlibOnly returns a harness with only the standard modules published and
// no other initialization done: no accounts, no validators, no configs.
func StdlibOnly(cfg Config) *Harness {
	h := NoGenesis(cfg)
	for _, m := range genesis.StdlibModules() {
		h.AddModule(m.ID, m.Bytes)
	}
	return h
}

// SetGoldenFile assigns the golden-output name for this test and, if a
// trace root is configured, creates the trace directory and starts
// recording.
func (h *Harness) SetGoldenFile(testName string) {
	h.golden = newGoldenLog(trace.Sanitize(testName))

	if h.cfg.TraceRoot == "" {
		return
	}
	version := uint64(0)
	if v, err := types.FetchVersion(h.state); err == nil {
		version = v.Major
	}
	recorder, err := trace.NewRecorder(h.cfg.TraceRoot, testName, version)
	if err != nil {
		fatalf("setting up the trace directory: %v", err)
	}
	h.recorder = recorder
	log.Info("tracing enabled", "dir", recorder.Dir())
}

// SetExecutors replaces both execution paths. The harness always runs both
// and compares; this hook exists so tests can inject engines, including
// deliberately divergent ones.
func (h *Harness) SetExecutors(seq engine.BlockExecutor, par engine.ParallelBlockExecutor) {
	h.seq = seq
	h.par = par
}

// StateView exposes the ledger state view.
func (h *Harness) StateView() *state.View { return h.state }

// BlockTime returns the current block time.
func (h *Harness) BlockTime() uint64 { return h.blockTime }

// SetBlockTime overrides the block time. Block time never decreases.
func (h *Harness) SetBlockTime(t uint64) {
	if t < h.blockTime {
		fatalf("block time must not decrease: %d -> %d", h.blockTime, t)
	}
	h.blockTime = t
}

// CreateRawAccount mints an account without publishing it.
func (h *Harness) CreateRawAccount() *account.Account {
	return h.keys.NewAccount()
}

// CreateRawAccountData mints an account plus initial resources without
// publishing them.
func (h *Harness) CreateRawAccountData(balance uint64, seqNum uint64) *account.Data {
	return h.keys.NewAccountData(balance, seqNum)
}

// CreateAccounts mints [n] accounts with the same balance and sequence
// number and publishes them to the ledger.
func (h *Harness) CreateAccounts(n int, balance uint64, seqNum uint64) []*account.Account {
	accounts := make([]*account.Account, 0, n)
	for i := 0; i < n; i++ {
		data := h.keys.NewAccountData(balance, seqNum)
		h.AddAccountData(data)
		accounts = append(accounts, data.Account)
	}
	return accounts
}

// AddAccountData publishes an account's resources to the ledger.
func (h *Harness) AddAccountData(data *account.Data) {
	ws, err := data.WriteSet()
	if err != nil {
		fatalf("building the account write set: %v", err)
	}
	h.ApplyWriteSet(ws)
}

// AddModule stores a module blob.
//
// Does not do any sort of verification on the module.
func (h *Harness) AddModule(id types.ModuleID, blob []byte) {
	if err := h.state.AddModule(id, blob); err != nil {
		fatalf("storing module %s: %v", id, err)
	}
}

// ApplyWriteSet applies [ws] to the ledger state.
func (h *Harness) ApplyWriteSet(ws types.WriteSet) {
	if err := h.state.Apply(ws); err != nil {
		fatalf("applying write set: %v", err)
	}
}

// VerifyTransaction runs [txn] through the validator without executing it.
func (h *Harness) VerifyTransaction(txn *types.SignedTransaction) engine.ValidationResult {
	return h.validator.ValidateTransaction(txn, h.state)
}

// ReadAccountResource reads the account record of [acct].
func (h *Harness) ReadAccountResource(acct *account.Account) (*types.AccountResource, error) {
	return h.ReadAccountResourceAt(acct.Address())
}

// ReadAccountResourceAt reads the account record under [addr].
func (h *Harness) ReadAccountResourceAt(addr types.Address) (*types.AccountResource, error) {
	out := &types.AccountResource{}
	if err := h.readResource(addr, types.AccountTag, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBalanceResource reads the balance of [acct].
func (h *Harness) ReadBalanceResource(acct *account.Account) (*types.BalanceResource, error) {
	return h.ReadBalanceResourceAt(acct.Address())
}

// ReadBalanceResourceAt reads the balance under [addr].
func (h *Harness) ReadBalanceResourceAt(addr types.Address) (*types.BalanceResource, error) {
	out := &types.BalanceResource{}
	if err := h.readResource(addr, types.BalanceTag, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadTransferEvents reads the transfer-events resource of [acct].
func (h *Harness) ReadTransferEvents(acct *account.Account) (*types.TransferEventsResource, error) {
	out := &types.TransferEventsResource{}
	if err := h.readResource(acct.Address(), types.TransferEventsTag, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFromKey returns the raw blob at [key]. A never-written slot returns
// database.ErrNotFound.
func (h *Harness) ReadFromKey(key types.StateKey) ([]byte, error) {
	return h.state.Get(key)
}

func (h *Harness) readResource(addr types.Address, tag string, out interface{}) error {
	blob, err := h.state.Get(types.ResourceKey(addr, tag))
	if err != nil {
		return err
	}
	return types.Unmarshal(blob, out)
}

func (h *Harness) workers() int {
	if h.cfg.Workers > 0 {
		return h.cfg.Workers
	}
	return runtime.NumCPU()
}

// fatalf aborts the calling test. The harness never retries or downgrades:
// these conditions are setup or environment bugs, and masking one is worse
// than crashing the run.
func fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}
