package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// AddressLength is the byte length of every account identifier on the chain.
const AddressLength = 32

// Address prefixes. The first byte of an address discriminates the account
// family it belongs to.
const (
	AccountPrefix byte = 0xA0
	TRSPrefix     byte = 0xC0
)

// Address is a 32-byte account identifier. Byte 0 is the prefix, bytes 1..31
// are the body.
type Address [AddressLength]byte

// AddressFromBytes copies b into an Address. The slice must be exactly 32
// bytes long.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("types: address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustAddressFromHex parses a hex-encoded address and panics on malformed
// input. Intended for package-level constants and tests.
func MustAddressFromHex(s string) Address {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	a, err := AddressFromBytes(b)
	if err != nil {
		panic(err)
	}
	return a
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Prefix returns the discriminator byte of the address.
func (a Address) Prefix() byte { return a[0] }

// Body returns the 31 bytes following the prefix.
func (a Address) Body() []byte { return a.Bytes()[1:] }

// IsZero reports whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return bytes.Equal(a[:], make([]byte, AddressLength))
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}
