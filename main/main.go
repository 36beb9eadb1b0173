// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// tracedump prints the contents of a trace directory written by the
// execution harness.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/vmharness/harness"
	"github.com/ava-labs/vmharness/trace"
	"github.com/ava-labs/vmharness/types"
)

func main() {
	p, err := getParams()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if p.printVersion {
		fmt.Printf("%s@%s\n", harness.Name, harness.Version)
		os.Exit(0)
	}
	if p.traceDir == "" {
		fmt.Println("--trace is required")
		os.Exit(1)
	}

	if err := dump(p.traceDir, p.decode); err != nil {
		log.Error("dump failed", "error", err)
		os.Exit(1)
	}
}

func dump(dir string, decode bool) error {
	name, err := os.ReadFile(filepath.Join(dir, trace.NameFile))
	if err != nil {
		return err
	}
	log.Info("trace", "name", string(name))

	if msg, err := os.ReadFile(filepath.Join(dir, trace.ErrorFile)); err == nil {
		log.Warn("trace recorded a vm failure", "error", string(msg))
	}

	mappings, err := readMappings(dir)
	if err != nil {
		return err
	}
	for i, m := range mappings {
		log.Info("block", "index", i, "snapshot", m.Snapshot, "inputs", len(m.Inputs), "outputs", len(m.Outputs))
		if !decode {
			continue
		}
		for _, seq := range m.Outputs {
			out, err := readOutput(dir, seq)
			if err != nil {
				return err
			}
			log.Info("output", "seq", seq, "status", out.Status, "gas", out.GasUsed,
				"writes", len(out.WriteSet), "events", len(out.Events))
		}
	}
	return nil
}

// readMappings reads every meta record in sequence order. Meta files are
// numbered from 0 with no gaps.
func readMappings(dir string) ([]trace.SeqMapping, error) {
	dirEntries, err := os.ReadDir(filepath.Join(dir, trace.MetaDir))
	if err != nil {
		return nil, err
	}
	mappings := make([]trace.SeqMapping, 0, len(dirEntries))
	for seq := 0; seq < len(dirEntries); seq++ {
		blob, err := os.ReadFile(filepath.Join(dir, trace.MetaDir, strconv.Itoa(seq)))
		if err != nil {
			return nil, err
		}
		m := trace.SeqMapping{}
		if err := types.Unmarshal(blob, &m); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func readOutput(dir string, seq uint64) (types.TransactionOutput, error) {
	out := types.TransactionOutput{}
	blob, err := os.ReadFile(filepath.Join(dir, trace.OutputDir, strconv.FormatUint(seq, 10)))
	if err != nil {
		return out, err
	}
	err = types.Unmarshal(blob, &out)
	return out, err
}
