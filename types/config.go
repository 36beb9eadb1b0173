// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// Resource tags. A resource lives at ResourceKey(addr, tag).
const (
	AccountTag           = "Account"
	BalanceTag           = "Balance"
	TransferEventsTag    = "TransferEvents"
	ValidatorSetTag      = "ValidatorSet"
	VersionTag           = "Version"
	BlockTag             = "Block"
	PublishingPolicyTag  = "PublishingPolicy"
	ParallelExecutionTag = "ParallelExecution"
)

// Event stream creation numbers.
const (
	NewBlockEventCreation uint64 = iota
	SentEventCreation
	ReceivedEventCreation
)

// AccountResource is the core account record.
type AccountResource struct {
	SequenceNumber    uint64 `serialize:"true"`
	AuthenticationKey []byte `serialize:"true"`
}

// BalanceResource holds an account's coin balance.
type BalanceResource struct {
	Coins uint64 `serialize:"true"`
}

// TransferEventsResource counts the transfer events emitted for an account.
// The counters double as the next sequence numbers of the two streams.
type TransferEventsResource struct {
	Sent     uint64 `serialize:"true"`
	Received uint64 `serialize:"true"`
}

// ValidatorSet is the on-chain registry of validator accounts.
type ValidatorSet struct {
	Validators []Address `serialize:"true"`
}

// Version is the on-chain framework version config.
type Version struct {
	Major uint64 `serialize:"true"`
}

// BlockResource tracks block progression on chain.
type BlockResource struct {
	Height    uint64 `serialize:"true"`
	Timestamp uint64 `serialize:"true"`
}

// TransferEvent is the payload of the events emitted on both sides of a
// coin transfer.
type TransferEvent struct {
	From   Address `serialize:"true"`
	To     Address `serialize:"true"`
	Amount uint64  `serialize:"true"`
}

// NewBlockEvent is the payload of the event emitted when a block opens.
type NewBlockEvent struct {
	Round     uint64 `serialize:"true"`
	Height    uint64 `serialize:"true"`
	Timestamp uint64 `serialize:"true"`
}

// NewBlockEventKey is the well-known key of the block-start event stream.
func NewBlockEventKey() EventKey {
	return EventKey{Address: CoreCodeAddress, Creation: NewBlockEventCreation}
}

// SentEventKey is the key of [addr]'s outbound transfer event stream.
func SentEventKey(addr Address) EventKey {
	return EventKey{Address: addr, Creation: SentEventCreation}
}

// ReceivedEventKey is the key of [addr]'s inbound transfer event stream.
func ReceivedEventKey(addr Address) EventKey {
	return EventKey{Address: addr, Creation: ReceivedEventCreation}
}

// FetchValidatorSet reads the validator set config from [view].
func FetchValidatorSet(view ReadView) (*ValidatorSet, error) {
	vs := &ValidatorSet{}
	if err := fetchConfig(view, ValidatorSetTag, vs); err != nil {
		return nil, err
	}
	return vs, nil
}

// FetchVersion reads the framework version config from [view].
func FetchVersion(view ReadView) (*Version, error) {
	v := &Version{}
	if err := fetchConfig(view, VersionTag, v); err != nil {
		return nil, err
	}
	return v, nil
}

func fetchConfig(view ReadView, tag string, out interface{}) error {
	blob, err := view.Get(ResourceKey(CoreCodeAddress, tag))
	if err != nil {
		return err
	}
	return Unmarshal(blob, out)
}
