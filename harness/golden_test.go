// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/ava-labs/vmharness/account"
	"github.com/ava-labs/vmharness/types"
)

func TestGoldenTransferHistory(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})
	accounts := h.CreateAccounts(2, 1000, 0)
	a, b := accounts[0], accounts[1]

	h.SetGoldenFile("transfer_history")
	assert.Equal("transfer_history", h.GoldenName())

	// A block boundary, a good transfer, an aborting transfer, and a
	// discarded one, each as its own block
	h.NewBlock()
	h.ExecuteAndApply(a.SignedTransfer(b.Address(), 100, 0))
	h.ExecuteTransaction(a.SignedTransfer(b.Address(), 5000, 1))
	stranger := account.FromAddress(types.Address{0xcd})
	h.ExecuteTransaction(stranger.SignedTransfer(b.Address(), 1, 0))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, h.GoldenName(), h.GoldenOutput())
}

func TestGoldenOffByDefault(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})
	accounts := h.CreateAccounts(2, 1000, 0)

	h.ExecuteAndApply(accounts[0].SignedTransfer(accounts[1].Address(), 1, 0))
	assert.Empty(h.GoldenOutput())
	assert.Empty(h.GoldenName())
}

func TestGoldenNameSanitized(t *testing.T) {
	assert := assert.New(t)
	h := OpenGenesis(Config{})

	h.SetGoldenFile("Module::run/case")
	assert.Equal("Module__run_case", h.GoldenName())
}
