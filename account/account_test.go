// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ava-labs/vmharness/types"
)

func TestKeyGenDeterministic(t *testing.T) {
	assert := assert.New(t)

	a := NewKeyGen()
	b := NewKeyGen()
	for i := 0; i < 4; i++ {
		x, y := a.NewAccount(), b.NewAccount()
		assert.Equal(x.Address(), y.Address())
		assert.Equal(x.PublicKey(), y.PublicKey())
	}
}

func TestKeyGenDistinctSeeds(t *testing.T) {
	assert := assert.New(t)

	seen := make(map[types.Address]bool)
	a := NewKeyGen()
	b := NewKeyGenFromSeed(91)
	for i := 0; i < 8; i++ {
		seen[a.NewAccount().Address()] = true
	}
	for i := 0; i < 8; i++ {
		assert.False(seen[b.NewAccount().Address()], "seeds produced overlapping addresses")
	}
}

func TestSignedTransferDeterministic(t *testing.T) {
	assert := assert.New(t)

	sender := NewKeyGen().NewAccount()
	to := types.Address{3}

	x := sender.SignedTransfer(to, 25, 1)
	y := sender.SignedTransfer(to, 25, 1)
	assert.Equal(x, y)

	assert.Equal(sender.Address(), x.Sender)
	assert.Equal(uint64(1), x.SequenceNumber)
	assert.Equal(DefaultGasLimit, x.GasLimit)
	assert.NotEmpty(x.Signature)

	payload, ok := x.Payload.(*types.TransferPayload)
	assert.True(ok)
	assert.Equal(to, payload.To)
	assert.Equal(uint64(25), payload.Amount)

	// Different fields, different signature
	z := sender.SignedTransfer(to, 26, 1)
	assert.NotEqual(x.Signature, z.Signature)
}

func TestDataWriteSet(t *testing.T) {
	assert := assert.New(t)

	data := NewKeyGen().NewAccountData(500, 7)
	ws, err := data.WriteSet()
	assert.NoError(err)
	assert.Len(ws, 3)

	addr := data.Account.Address()
	assert.Equal(types.ResourceKey(addr, types.AccountTag), ws[0].Key)

	acct := types.AccountResource{}
	assert.NoError(types.Unmarshal(ws[0].Value, &acct))
	assert.Equal(uint64(7), acct.SequenceNumber)

	balance := types.BalanceResource{}
	assert.NoError(types.Unmarshal(ws[1].Value, &balance))
	assert.Equal(uint64(500), balance.Coins)
}
