package crypto

import (
	"bytes"
	"testing"

	"aionchain/core/types"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("transfer 100 to a0...")
	sig := key.Sign(msg)
	if !sig.Verify(msg) {
		t.Fatal("valid signature rejected")
	}
	if sig.Verify([]byte("transfer 101 to a0...")) {
		t.Fatal("signature verified over altered message")
	}
	if sig.Recover() != key.Address() {
		t.Fatal("recovered address mismatch")
	}
}

func TestParseSignature(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sig := key.Sign([]byte("payload"))
	wire := sig.Bytes()
	if len(wire) != SignatureSize {
		t.Fatalf("wire signature is %d bytes", len(wire))
	}

	parsed, err := ParseSignature(wire)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(parsed.PublicKey, sig.PublicKey) || !bytes.Equal(parsed.Raw, sig.Raw) {
		t.Fatal("parsed signature does not round trip")
	}
	if !parsed.Verify([]byte("payload")) {
		t.Fatal("parsed signature rejected")
	}

	if _, err := ParseSignature(wire[:95]); err == nil {
		t.Fatal("expected error for truncated signature")
	}
	if _, err := ParseSignature(append(wire, 0x0)); err == nil {
		t.Fatal("expected error for oversized signature")
	}
}

func TestAddressFromPublicKeyPrefix(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.Address()
	if addr.Prefix() != types.AccountPrefix {
		t.Fatalf("address prefix = %#x, want %#x", addr.Prefix(), types.AccountPrefix)
	}

	other, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if other.Address() == addr {
		t.Fatal("distinct keys derived the same address")
	}
}
