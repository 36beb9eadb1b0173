// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/vmharness/types"
)

var (
	errUnknownFunction     = errors.New("unknown entry point")
	errBadArgument         = errors.New("bad entry point argument")
	errAccountExists       = errors.New("account already exists")
	errAccountDoesNotExist = errors.New("account does not exist")
)

// nativeFunc is a directly invocable entry point. Natives run with
// unmetered gas and no signer, visibility, or signature checks.
type nativeFunc func(s *Session, typeArgs []string, args [][]byte) error

var natives = map[string]nativeFunc{
	"Account::create_account": nativeCreateAccount,
	"Coin::mint":              nativeMint,
}

// Session is a direct-invocation context over a read view. Writes accumulate
// in an ordered log; nothing touches the underlying view until the caller
// applies the finished change set.
type Session struct {
	overlay *overlayView
	log     types.WriteSet
	events  []types.Event
}

// NewSession opens a fresh session against [view].
func NewSession(view types.ReadView) *Session {
	return &Session{overlay: newOverlayView(view)}
}

// ExecuteFunction runs the named entry point, bypassing transaction
// validation and function visibility. The module's address is ignored;
// entry points resolve by module and function name alone.
func (s *Session) ExecuteFunction(module types.ModuleID, function string, typeArgs []string, args [][]byte) error {
	fn, ok := natives[module.Name+"::"+function]
	if !ok {
		return fmt.Errorf("%w: %s::%s", errUnknownFunction, module.Name, function)
	}
	return fn(s, typeArgs, args)
}

// Finish closes the session and returns the accumulated change set.
func (s *Session) Finish() (types.ChangeSet, error) {
	return types.ChangeSet{WriteSet: s.log, Events: s.events}, nil
}

func (s *Session) write(key types.StateKey, value []byte) {
	op := types.NewWrite(key, value)
	s.log = append(s.log, op)
	s.overlay.apply(types.WriteSet{op})
}

func (s *Session) writeResource(addr types.Address, tag string, value interface{}) error {
	blob, err := types.Marshal(value)
	if err != nil {
		return err
	}
	s.write(types.ResourceKey(addr, tag), blob)
	return nil
}

// nativeCreateAccount publishes a fresh account at args[0] (a 20-byte
// address) with sequence number zero and an empty balance. args[1], if
// present, is the authentication key.
func nativeCreateAccount(s *Session, _ []string, args [][]byte) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: create_account wants an address", errBadArgument)
	}
	addr, err := decodeAddress(args[0])
	if err != nil {
		return err
	}
	found, err := readResource(s.overlay, addr, types.AccountTag, &types.AccountResource{})
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s", errAccountExists, addr)
	}

	authKey := args[0]
	if len(args) > 1 {
		authKey = args[1]
	}
	if err := s.writeResource(addr, types.AccountTag, &types.AccountResource{AuthenticationKey: authKey}); err != nil {
		return err
	}
	if err := s.writeResource(addr, types.BalanceTag, &types.BalanceResource{}); err != nil {
		return err
	}
	return s.writeResource(addr, types.TransferEventsTag, &types.TransferEventsResource{})
}

// nativeMint credits args[1] (big-endian uint64) coins to the account at
// args[0]. The account must already exist.
func nativeMint(s *Session, _ []string, args [][]byte) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: mint wants an address and an amount", errBadArgument)
	}
	addr, err := decodeAddress(args[0])
	if err != nil {
		return err
	}
	amount, err := decodeUint64(args[1])
	if err != nil {
		return err
	}

	balance := types.BalanceResource{}
	found, err := readResource(s.overlay, addr, types.BalanceTag, &balance)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", errAccountDoesNotExist, addr)
	}
	return s.writeResource(addr, types.BalanceTag, &types.BalanceResource{Coins: balance.Coins + amount})
}

func decodeAddress(b []byte) (types.Address, error) {
	addr, err := ids.ToShortID(b)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", errBadArgument, err)
	}
	return addr, nil
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: want 8 bytes, got %d", errBadArgument, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
