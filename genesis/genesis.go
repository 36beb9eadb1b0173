// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package genesis builds the write set that establishes initial ledger
// state. Every construction mode of the harness converges on applying one
// generated change set to an otherwise-empty state view.
package genesis

import (
	"github.com/pkg/errors"

	"github.com/ava-labs/vmharness/account"
	"github.com/ava-labs/vmharness/types"
)

// PublishingPolicy controls whether arbitrary module publishing is open.
type PublishingPolicy uint8

const (
	OpenPublishing PublishingPolicy = iota
	RestrictedPublishing
)

// DefaultValidatorCount is used when a caller does not ask for a specific
// validator-set size.
const DefaultValidatorCount = 4

const validatorInitialBalance uint64 = 1_000_000

// Validator key material comes from its own seed so genesis addresses never
// collide with accounts the harness mints afterwards.
const validatorSeed int64 = 91

// PolicyResource is the on-chain form of the publishing policy.
type PolicyResource struct {
	Open bool `serialize:"true"`
}

// ParallelExecutionResource marks a chain bootstrapped for parallel
// execution.
type ParallelExecutionResource struct {
	Enabled bool `serialize:"true"`
}

// Module is one pre-baked program module.
type Module struct {
	ID    types.ModuleID
	Bytes []byte
}

var stdlibNames = []string{"Account", "Coin", "Block"}

// StdlibModules returns the fixed standard module set. The blobs are
// deterministic; the reference engine dispatches entry points by name and
// treats the blobs as opaque.
func StdlibModules() []Module {
	modules := make([]Module, len(stdlibNames))
	for i, name := range stdlibNames {
		modules[i] = Module{
			ID:    types.ModuleID{Address: types.CoreCodeAddress, Name: name},
			Bytes: moduleBlob(name),
		}
	}
	return modules
}

func moduleBlob(name string) []byte {
	blob := []byte{0x00, 'm', 'o', 'd', 0x01}
	return append(blob, name...)
}

// Generate builds a genesis change set: the given modules, the framework
// version and block configs, the publishing policy, and [validators]
// pre-funded validator accounts registered in the on-chain validator set.
func Generate(modules []Module, policy PublishingPolicy, validators int, parallel bool) (types.ChangeSet, error) {
	ws := types.WriteSet{}
	for _, m := range modules {
		ws = append(ws, types.NewWrite(types.ModuleKey(m.ID), m.Bytes))
	}

	ws, err := appendConfig(ws, types.VersionTag, &types.Version{Major: 1})
	if err != nil {
		return types.ChangeSet{}, err
	}
	ws, err = appendConfig(ws, types.BlockTag, &types.BlockResource{})
	if err != nil {
		return types.ChangeSet{}, err
	}
	ws, err = appendConfig(ws, types.PublishingPolicyTag, &PolicyResource{Open: policy == OpenPublishing})
	if err != nil {
		return types.ChangeSet{}, err
	}
	if parallel {
		ws, err = appendConfig(ws, types.ParallelExecutionTag, &ParallelExecutionResource{Enabled: true})
		if err != nil {
			return types.ChangeSet{}, err
		}
	}

	keys := account.NewKeyGenFromSeed(validatorSeed)
	set := types.ValidatorSet{}
	for i := 0; i < validators; i++ {
		data := keys.NewAccountData(validatorInitialBalance, 0)
		accountWS, err := data.WriteSet()
		if err != nil {
			return types.ChangeSet{}, errors.Wrapf(err, "seeding validator account %d", i)
		}
		ws = append(ws, accountWS...)
		set.Validators = append(set.Validators, data.Account.Address())
	}
	ws, err = appendConfig(ws, types.ValidatorSetTag, &set)
	if err != nil {
		return types.ChangeSet{}, err
	}

	return types.ChangeSet{WriteSet: ws}, nil
}

func appendConfig(ws types.WriteSet, tag string, value interface{}) (types.WriteSet, error) {
	blob, err := types.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling %s config", tag)
	}
	return append(ws, types.NewWrite(types.ResourceKey(types.CoreCodeAddress, tag), blob)), nil
}
