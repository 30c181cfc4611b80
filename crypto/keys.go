package crypto

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"fmt"

	consensus "github.com/hdevalence/ed25519consensus"
	"golang.org/x/crypto/blake2b"

	"aionchain/core/types"
)

const (
	// PublicKeySize is the ed25519 public key length.
	PublicKeySize = stded25519.PublicKeySize
	// RawSignatureSize is the bare ed25519 signature length.
	RawSignatureSize = stded25519.SignatureSize
	// SignatureSize is the wire size of a signature: the signer's public key
	// followed by the raw signature.
	SignatureSize = PublicKeySize + RawSignatureSize
)

// Hash32 is the chain's 32-byte hash, blake2b-256.
func Hash32(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// AddressFromPublicKey derives the account address for an ed25519 public
// key: the blake2b-256 of the key with the first byte forced to the ordinary
// account prefix.
func AddressFromPublicKey(pub stded25519.PublicKey) types.Address {
	var addr types.Address
	h := Hash32(pub)
	copy(addr[:], h[:])
	addr[0] = types.AccountPrefix
	return addr
}

// Signature is the 96-byte wire signature: public key ‖ raw signature.
type Signature struct {
	PublicKey stded25519.PublicKey
	Raw       []byte
}

// ParseSignature splits a 96-byte wire signature into its public key and raw
// signature halves.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("crypto: signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	sig := Signature{
		PublicKey: make([]byte, PublicKeySize),
		Raw:       make([]byte, RawSignatureSize),
	}
	copy(sig.PublicKey, b[:PublicKeySize])
	copy(sig.Raw, b[PublicKeySize:])
	return sig, nil
}

// Bytes returns the wire encoding of the signature.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, s.PublicKey...)
	return append(out, s.Raw...)
}

// Recover returns the address of the embedded public key.
func (s Signature) Recover() types.Address {
	return AddressFromPublicKey(s.PublicKey)
}

// Verify checks the signature over message. Verification runs under the
// consensus-strict ed25519 rules so every node accepts exactly the same
// signature set.
func (s Signature) Verify(message []byte) bool {
	if len(s.PublicKey) != PublicKeySize || len(s.Raw) != RawSignatureSize {
		return false
	}
	return consensus.Verify(stded25519.PublicKey(s.PublicKey), message, s.Raw)
}

// Key is an ed25519 signing key with its derived account address.
type Key struct {
	priv stded25519.PrivateKey
	pub  stded25519.PublicKey
}

// GenerateKey produces a fresh signing key.
func GenerateKey() (*Key, error) {
	pub, priv, err := stded25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Key{priv: priv, pub: pub}, nil
}

// PublicKey returns the verifying half of the key.
func (k *Key) PublicKey() stded25519.PublicKey { return k.pub }

// Address returns the account address derived from the public key.
func (k *Key) Address() types.Address { return AddressFromPublicKey(k.pub) }

// Sign produces the 96-byte wire signature over message.
func (k *Key) Sign(message []byte) Signature {
	return Signature{
		PublicKey: append(stded25519.PublicKey(nil), k.pub...),
		Raw:       stded25519.Sign(k.priv, message),
	}
}
