// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0
)

var (
	errWrongCodecVersion = errors.New("wrong codec version")

	// Codec does serialization and deserialization
	Codec codec.Manager
)

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}

	errs.Add(
		c.RegisterType(&SignedTransaction{}),
		c.RegisterType(&BlockMetadata{}),
		c.RegisterType(&TransferPayload{}),
	)

	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Marshal encodes [value] with the default codec version.
func Marshal(value interface{}) ([]byte, error) {
	return Codec.Marshal(CodecVersion, value)
}

// Unmarshal decodes [bytes] into [value], rejecting any codec version other
// than the current one.
func Unmarshal(bytes []byte, value interface{}) error {
	version, err := Codec.Unmarshal(bytes, value)
	if err != nil {
		return err
	}
	if version != CodecVersion {
		return errWrongCodecVersion
	}
	return nil
}
