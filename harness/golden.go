// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package harness

import (
	"bytes"
	"fmt"

	"github.com/ava-labs/vmharness/types"
)

// goldenLog accumulates a deterministic, human-readable transcript of every
// block executed once SetGoldenFile has been called. Tests compare it
// against checked-in fixtures.
type goldenLog struct {
	name string
	buf  bytes.Buffer
}

func newGoldenLog(name string) *goldenLog {
	return &goldenLog{name: name}
}

func (g *goldenLog) logBlock(outputs []types.TransactionOutput, execErr error) {
	if execErr != nil {
		fmt.Fprintf(&g.buf, "error: %s\n", execErr)
		return
	}
	for i, out := range outputs {
		fmt.Fprintf(&g.buf, "%d: status=%s gas=%d writes=%d events=%d\n",
			i, out.Status, out.GasUsed, len(out.WriteSet), len(out.Events))
	}
}

// GoldenName returns the sanitized name passed to SetGoldenFile, or "" if
// golden logging is off.
func (h *Harness) GoldenName() string {
	if h.golden == nil {
		return ""
	}
	return h.golden.name
}

// GoldenOutput returns the transcript accumulated so far.
func (h *Harness) GoldenOutput() []byte {
	if h.golden == nil {
		return nil
	}
	return h.golden.buf.Bytes()
}
