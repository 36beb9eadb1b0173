// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state holds the harness's in-memory ledger state. The view is the
// sole mutable ledger state of a harness instance: it is created once at
// genesis and mutated only through write-set application.
package state

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"

	"github.com/ava-labs/vmharness/types"
)

var (
	errUnknownWriteKind = errors.New("unknown write-set operation kind")

	_ types.ReadView = (*View)(nil)
)

// View maps state keys to raw byte blobs. It is not a storage engine; reads
// are safe to share with read-only execution paths, writes happen only
// through Apply.
type View struct {
	db database.Database
}

// New returns an empty view.
func New() *View {
	return &View{db: memdb.New()}
}

// Get returns the blob stored at [key]. A slot that has never been written
// returns database.ErrNotFound; a slot holding an empty blob does not.
func (v *View) Get(key types.StateKey) ([]byte, error) {
	return v.db.Get(key.Bytes())
}

// Has reports whether [key] holds a value.
func (v *View) Has(key types.StateKey) (bool, error) {
	return v.db.Has(key.Bytes())
}

// Apply lands [ws] as a single batch write. Operations are replayed in
// sequence order, so the last operation on a key wins. Writes always upsert
// and deletes of absent keys are no-ops.
func (v *View) Apply(ws types.WriteSet) error {
	batch := v.db.NewBatch()
	for _, op := range ws {
		var err error
		switch op.Kind {
		case types.WriteValue:
			err = batch.Put(op.Key.Bytes(), op.Value)
		case types.DeleteValue:
			err = batch.Delete(op.Key.Bytes())
		default:
			err = errUnknownWriteKind
		}
		if err != nil {
			return err
		}
	}
	return batch.Write()
}

// SetResource marshals [value] and stores it as the [tag] resource of
// [addr]. Used for seeding state outside normal execution.
func (v *View) SetResource(addr types.Address, tag string, value interface{}) error {
	blob, err := types.Marshal(value)
	if err != nil {
		return err
	}
	return v.db.Put(types.ResourceKey(addr, tag).Bytes(), blob)
}

// AddModule stores a module blob under its module key.
//
// Does not do any sort of verification on the module.
func (v *View) AddModule(id types.ModuleID, blob []byte) error {
	return v.db.Put(types.ModuleKey(id).Bytes(), blob)
}

// RawEntry is one key/value pair of a state snapshot.
type RawEntry struct {
	Key   []byte `serialize:"true"`
	Value []byte `serialize:"true"`
}

// Snapshot is a full, key-ordered dump of the view, serializable with the
// deterministic codec.
type Snapshot struct {
	Entries []RawEntry `serialize:"true"`
}

// Snapshot dumps the entire view. Entries come back in key order, so two
// views holding the same mapping produce byte-identical snapshots.
func (v *View) Snapshot() (*Snapshot, error) {
	it := v.db.NewIterator()
	defer it.Release()

	snap := &Snapshot{}
	for it.Next() {
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)
		snap.Entries = append(snap.Entries, RawEntry{Key: key, Value: value})
	}
	return snap, it.Error()
}
