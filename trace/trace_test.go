// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ava-labs/vmharness/types"
)

func testTxn(seq uint64) types.Transaction {
	return &types.SignedTransaction{
		Sender:         types.Address{1},
		SequenceNumber: seq,
		Payload:        &types.TransferPayload{To: types.Address{2}, Amount: 10},
		GasLimit:       1000,
	}
}

func TestRecorderLayout(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()

	r, err := NewRecorder(root, "verify_simple_transfer::7", 7)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "verify_simple_transfer__7"), r.Dir())

	// The name record keeps the raw, unsanitized name
	name, err := os.ReadFile(filepath.Join(r.Dir(), NameFile))
	assert.NoError(err)
	assert.Equal("verify_simple_transfer::7::7", string(name))

	for _, sub := range []string{MetaDir, DataDir, InputDir, OutputDir} {
		info, err := os.Stat(filepath.Join(r.Dir(), sub))
		assert.NoError(err)
		assert.True(info.IsDir())
	}
}

func TestRecorderSequenceNumbering(t *testing.T) {
	assert := assert.New(t)

	r, err := NewRecorder(t.TempDir(), "numbering", 0)
	assert.NoError(err)

	for i := uint64(0); i < 3; i++ {
		seq, err := r.RecordInput(testTxn(i))
		assert.NoError(err)
		assert.Equal(i, seq)
	}
	// Counters are independent per subdirectory
	seq, err := r.RecordOutput(types.TransactionOutput{Status: types.Keep(types.ExecutionSuccess)})
	assert.NoError(err)
	assert.Equal(uint64(0), seq)

	dirEntries, err := os.ReadDir(filepath.Join(r.Dir(), InputDir))
	assert.NoError(err)
	assert.Len(dirEntries, 3)
}

func TestRecorderSequenceCollision(t *testing.T) {
	assert := assert.New(t)

	r, err := NewRecorder(t.TempDir(), "collision", 0)
	assert.NoError(err)

	seq, err := r.RecordInput(testTxn(0))
	assert.NoError(err)
	assert.Equal(uint64(0), seq)

	// Plant the next sequence number's file behind the recorder's back
	assert.NoError(os.WriteFile(filepath.Join(r.Dir(), InputDir, "1"), []byte("stale"), 0644))

	_, err = r.RecordInput(testTxn(1))
	assert.Error(err)
	assert.Contains(err.Error(), "trace sequence collision")
}

func TestRecorderReplacesStaleDir(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()

	r, err := NewRecorder(root, "rerun", 3)
	assert.NoError(err)
	_, err = r.RecordInput(testTxn(0))
	assert.NoError(err)

	// A second run of the same test starts from a clean directory
	r2, err := NewRecorder(root, "rerun", 4)
	assert.NoError(err)
	assert.Equal(r.Dir(), r2.Dir())

	dirEntries, err := os.ReadDir(filepath.Join(r2.Dir(), InputDir))
	assert.NoError(err)
	assert.Empty(dirEntries)

	name, err := os.ReadFile(filepath.Join(r2.Dir(), NameFile))
	assert.NoError(err)
	assert.Equal("rerun::4", string(name))
}

func TestRecordedInputRoundTrips(t *testing.T) {
	assert := assert.New(t)

	r, err := NewRecorder(t.TempDir(), "roundtrip", 0)
	assert.NoError(err)

	in := testTxn(5)
	seq, err := r.RecordInput(in)
	assert.NoError(err)
	assert.Equal(uint64(0), seq)

	blob, err := os.ReadFile(filepath.Join(r.Dir(), InputDir, "0"))
	assert.NoError(err)

	decoded := tracedTransaction{}
	assert.NoError(types.Unmarshal(blob, &decoded))
	txn, ok := decoded.Txn.(*types.SignedTransaction)
	assert.True(ok)
	assert.Equal(types.Address{1}, txn.Sender)
	assert.Equal(uint64(5), txn.SequenceNumber)
	payload, ok := txn.Payload.(*types.TransferPayload)
	assert.True(ok)
	assert.Equal(uint64(10), payload.Amount)
}

func TestRecordError(t *testing.T) {
	assert := assert.New(t)

	r, err := NewRecorder(t.TempDir(), "vmfailure", 0)
	assert.NoError(err)

	assert.NoError(r.RecordError(errors.New("unknown transaction type")))
	msg, err := os.ReadFile(filepath.Join(r.Dir(), ErrorFile))
	assert.NoError(err)
	assert.Equal("unknown transaction type", string(msg))

	// A second failure record for the same trace is rejected
	assert.Error(r.RecordError(errors.New("again")))
}

func TestSanitize(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("verify_simple_transfer", Sanitize("verify_simple_transfer"))
	assert.Equal("Test_Module__publish", Sanitize("Test/Module::publish"))
	assert.Equal("a.b-c_d", Sanitize("a.b-c_d"))
}
