// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
)

// Address identifies one account on the ledger.
type Address = ids.ShortID

// CoreCodeAddress is the address framework modules and on-chain configs
// live under.
var CoreCodeAddress = Address{19: 0x01}

// StateKey identifies one ledger storage slot. Keys are comparable and
// ordered by their byte form.
type StateKey struct {
	Address Address `serialize:"true"`
	Path    string  `serialize:"true"`
}

// ResourceKey returns the state key of the [tag] resource under [addr].
func ResourceKey(addr Address, tag string) StateKey {
	return StateKey{Address: addr, Path: "r/" + tag}
}

// ModuleKey returns the state key a published module blob is stored under.
func ModuleKey(id ModuleID) StateKey {
	return StateKey{Address: id.Address, Path: "m/" + id.Name}
}

// Bytes returns the database form of the key.
func (k StateKey) Bytes() []byte {
	b := make([]byte, 0, len(k.Address)+1+len(k.Path))
	b = append(b, k.Address[:]...)
	b = append(b, '/')
	b = append(b, k.Path...)
	return b
}

func (k StateKey) String() string {
	return fmt.Sprintf("%s/%s", k.Address, k.Path)
}

// ModuleID names a published program module.
type ModuleID struct {
	Address Address `serialize:"true"`
	Name    string  `serialize:"true"`
}

func (m ModuleID) String() string {
	return fmt.Sprintf("%s::%s", m.Address, m.Name)
}

// WriteKind discriminates write-set operations.
type WriteKind uint8

const (
	// WriteValue upserts the value at the key.
	WriteValue WriteKind = iota
	// DeleteValue removes the key. Deleting an absent key is a no-op.
	DeleteValue
)

// WriteOp is one operation of a write set.
type WriteOp struct {
	Key   StateKey  `serialize:"true"`
	Kind  WriteKind `serialize:"true"`
	Value []byte    `serialize:"true"`
}

// WriteSet is an ordered batch of state mutations. Applying a write set is
// atomic; if two operations target the same key the later one wins.
type WriteSet []WriteOp

// NewWrite returns an upsert operation.
func NewWrite(key StateKey, value []byte) WriteOp {
	return WriteOp{Key: key, Kind: WriteValue, Value: value}
}

// NewDelete returns a delete operation.
func NewDelete(key StateKey) WriteOp {
	return WriteOp{Key: key, Kind: DeleteValue}
}

// EventKey identifies one event stream.
type EventKey struct {
	Address  Address `serialize:"true"`
	Creation uint64  `serialize:"true"`
}

// Event is one emitted event record.
type Event struct {
	Key      EventKey `serialize:"true"`
	Sequence uint64   `serialize:"true"`
	Data     []byte   `serialize:"true"`
}

// ChangeSet pairs a write set with the events emitted while producing it.
type ChangeSet struct {
	WriteSet WriteSet `serialize:"true"`
	Events   []Event  `serialize:"true"`
}

// ReadView is the read-only surface of the ledger state. Get returns
// database.ErrNotFound for a slot that has never been written; this is a
// distinct condition from a slot holding an empty value.
type ReadView interface {
	Get(key StateKey) ([]byte, error)
}
