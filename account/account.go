// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package account generates test accounts and builds their transactions.
// Generation is seeded with a fixed value so every harness run mints the
// same addresses in the same order.
package account

import (
	"encoding/binary"
	"math/rand"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/vmharness/types"
)

const rngSeed int64 = 9

// DefaultGasLimit is used by the built-in transaction builders.
const DefaultGasLimit uint64 = 1000

// KeyGen deterministically produces account key material.
type KeyGen struct {
	rng *rand.Rand
}

// NewKeyGen returns a generator seeded with the harness's fixed seed.
func NewKeyGen() *KeyGen {
	return NewKeyGenFromSeed(rngSeed)
}

// NewKeyGenFromSeed returns a generator with an explicit seed. Generators
// with distinct seeds mint disjoint address sequences, which keeps
// genesis-minted validators clear of harness-minted test accounts.
func NewKeyGenFromSeed(seed int64) *KeyGen {
	return &KeyGen{rng: rand.New(rand.NewSource(seed))}
}

// NewAccount mints a fresh account without publishing it anywhere.
func (g *KeyGen) NewAccount() *Account {
	pub := make([]byte, 32)
	g.rng.Read(pub)
	addr, err := ids.ToShortID(hashing.ComputeHash160(pub))
	if err != nil {
		panic(err)
	}
	return &Account{addr: addr, pub: pub}
}

// NewAccountData mints a fresh account together with the ledger resources
// it should be seeded with.
func (g *KeyGen) NewAccountData(balance uint64, seqNum uint64) *Data {
	return &Data{
		Account:        g.NewAccount(),
		Balance:        balance,
		SequenceNumber: seqNum,
	}
}

// Account is a test account identity.
type Account struct {
	addr types.Address
	pub  []byte
}

// FromAddress returns an account identity with no key material, for tests
// that only care about the address.
func FromAddress(addr types.Address) *Account {
	return &Account{addr: addr}
}

func (a *Account) Address() types.Address { return a.addr }

func (a *Account) PublicKey() []byte { return a.pub }

// SignedTransfer builds a signed transfer of [amount] coins to [to] with the
// given sender sequence number. The signature is a deterministic digest of
// the transaction fields; the harness's engines do not verify signatures,
// but trace output must stay reproducible.
func (a *Account) SignedTransfer(to types.Address, amount uint64, seqNum uint64) *types.SignedTransaction {
	sigInput := make([]byte, 0, len(a.pub)+len(to)+16)
	sigInput = append(sigInput, a.pub...)
	sigInput = append(sigInput, to[:]...)
	sigInput = appendUint64(sigInput, amount)
	sigInput = appendUint64(sigInput, seqNum)

	return &types.SignedTransaction{
		Sender:         a.addr,
		SequenceNumber: seqNum,
		Payload:        &types.TransferPayload{To: to, Amount: amount},
		GasLimit:       DefaultGasLimit,
		PublicKey:      a.pub,
		Signature:      hashing.ComputeHash256(sigInput),
	}
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

// Data is an account plus the initial resource values to publish for it.
type Data struct {
	Account        *Account
	Balance        uint64
	SequenceNumber uint64
}

// WriteSet returns the write set that publishes the account's resources.
func (d *Data) WriteSet() (types.WriteSet, error) {
	addr := d.Account.Address()

	acct, err := types.Marshal(&types.AccountResource{
		SequenceNumber:    d.SequenceNumber,
		AuthenticationKey: d.Account.PublicKey(),
	})
	if err != nil {
		return nil, err
	}
	balance, err := types.Marshal(&types.BalanceResource{Coins: d.Balance})
	if err != nil {
		return nil, err
	}
	events, err := types.Marshal(&types.TransferEventsResource{})
	if err != nil {
		return nil, err
	}

	return types.WriteSet{
		types.NewWrite(types.ResourceKey(addr, types.AccountTag), acct),
		types.NewWrite(types.ResourceKey(addr, types.BalanceTag), balance),
		types.NewWrite(types.ResourceKey(addr, types.TransferEventsTag), events),
	}, nil
}
