// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package trace records every block execution's starting state, inputs, and
// outputs as a numbered file sequence, for offline replay and regression
// diffing. Recording never alters execution results; any
// recording failure is an environment problem and is surfaced as fatal by
// the harness.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ava-labs/vmharness/state"
	"github.com/ava-labs/vmharness/types"
)

// Directory structure of one trace.
const (
	NameFile  = "name"
	ErrorFile = "error"
	MetaDir   = "meta"
	DataDir   = "data"
	InputDir  = "input"
	OutputDir = "output"
)

var subDirs = []string{MetaDir, DataDir, InputDir, OutputDir}

// SeqMapping ties one executed block to the sequence numbers of its state
// snapshot, input transactions, and output records. One is written to
// meta/ per executed block.
type SeqMapping struct {
	Snapshot uint64   `serialize:"true"`
	Inputs   []uint64 `serialize:"true"`
	Outputs  []uint64 `serialize:"true"`
}

// tracedTransaction wraps the transaction interface so the codec records
// the concrete variant.
type tracedTransaction struct {
	Txn types.Transaction `serialize:"true"`
}

// Recorder writes trace items under <root>/<sanitized name>/. Sequence
// numbers are per-subdirectory counters seeded from the pre-existing file
// count. Files are created exclusively, so reusing a sequence number fails
// instead of overwriting; that only happens if the recorder ran
// concurrently or out of order.
type Recorder struct {
	dir      string
	counters map[string]uint64
}

// NewRecorder creates the trace directory for [testName], removing any
// stale directory from an earlier run, and writes the name record
// "<testName>::<version>".
func NewRecorder(root string, testName string, version uint64) (*Recorder, error) {
	dir := filepath.Join(root, Sanitize(testName))
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return nil, errors.Wrap(err, "cleaning up the trace directory")
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating the trace directory")
	}

	nameFile, err := os.OpenFile(filepath.Join(dir, NameFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "creating the trace name file")
	}
	_, err = fmt.Fprintf(nameFile, "%s::%d", testName, version)
	if closeErr := nameFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "writing the trace name file")
	}

	for _, sub := range subDirs {
		if err := os.Mkdir(filepath.Join(dir, sub), 0755); err != nil {
			return nil, errors.Wrapf(err, "creating <trace>/%s", sub)
		}
	}

	return &Recorder{dir: dir, counters: make(map[string]uint64)}, nil
}

// Dir returns the trace directory.
func (r *Recorder) Dir() string { return r.dir }

// RecordSnapshot records a full-state snapshot, returning its sequence
// number.
func (r *Recorder) RecordSnapshot(snap *state.Snapshot) (uint64, error) {
	return r.record(DataDir, snap)
}

// RecordInput records one input transaction, returning its sequence number.
func (r *Recorder) RecordInput(txn types.Transaction) (uint64, error) {
	return r.record(InputDir, &tracedTransaction{Txn: txn})
}

// RecordOutput records one transaction output, returning its sequence
// number.
func (r *Recorder) RecordOutput(out types.TransactionOutput) (uint64, error) {
	return r.record(OutputDir, &out)
}

// RecordMapping records the per-block sequence mapping.
func (r *Recorder) RecordMapping(m SeqMapping) error {
	_, err := r.record(MetaDir, &m)
	return err
}

// RecordError writes the textual VM failure for a block whose execution
// failed, in place of any output records.
func (r *Recorder) RecordError(execErr error) error {
	f, err := os.OpenFile(filepath.Join(r.dir, ErrorFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrap(err, "creating the trace error file")
	}
	_, err = f.WriteString(execErr.Error())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return errors.Wrap(err, "writing the trace error file")
}

func (r *Recorder) record(sub string, item interface{}) (uint64, error) {
	seq, err := r.nextSeq(sub)
	if err != nil {
		return 0, err
	}
	bytes, err := types.Marshal(item)
	if err != nil {
		return 0, errors.Wrap(err, "serializing the trace item")
	}

	path := filepath.Join(r.dir, sub, strconv.FormatUint(seq, 10))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		return 0, errors.Errorf("trace sequence collision at %s/%d: recorder used concurrently or out of order", sub, seq)
	}
	if err != nil {
		return 0, errors.Wrap(err, "creating a trace file")
	}
	_, err = f.Write(bytes)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, errors.Wrap(err, "writing a trace file")
	}

	r.counters[sub] = seq + 1
	return seq, nil
}

// nextSeq seeds the subdirectory's counter from the number of files already
// present the first time it is used, so resuming into a non-fresh directory
// stays monotonic.
func (r *Recorder) nextSeq(sub string) (uint64, error) {
	if c, ok := r.counters[sub]; ok {
		return c, nil
	}
	dirEntries, err := os.ReadDir(filepath.Join(r.dir, sub))
	if err != nil {
		return 0, errors.Wrap(err, "reading the trace dir")
	}
	return uint64(len(dirEntries)), nil
}

// Sanitize rewrites characters that are invalid in file names (':' in
// particular) to underscores.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
