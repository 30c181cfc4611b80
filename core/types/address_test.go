package types

import "testing"

func TestAddressFromBytes(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = AccountPrefix
	raw[31] = 0x07
	addr, err := AddressFromBytes(raw)
	if err != nil {
		t.Fatalf("address from bytes: %v", err)
	}
	if addr.Prefix() != AccountPrefix {
		t.Fatalf("prefix = %#x, want %#x", addr.Prefix(), AccountPrefix)
	}
	if len(addr.Body()) != AddressLength-1 {
		t.Fatalf("body length = %d", len(addr.Body()))
	}

	if _, err := AddressFromBytes(raw[:31]); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestAddressIsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatal("zero address not reported zero")
	}
	zero[5] = 0x1
	if zero.IsZero() {
		t.Fatal("non-zero address reported zero")
	}
}

func TestResultCodeString(t *testing.T) {
	cases := map[ResultCode]string{
		Success:             "SUCCESS",
		Failure:             "FAILURE",
		OutOfEnergy:         "OUT_OF_NRG",
		InvalidEnergyLimit:  "INVALID_NRG_LIMIT",
		InsufficientBalance: "INSUFFICIENT_BALANCE",
	}
	for code, want := range cases {
		if code.String() != want {
			t.Fatalf("%d.String() = %q, want %q", code, code.String(), want)
		}
	}
	if !Success.IsSuccess() || Failure.IsSuccess() {
		t.Fatal("IsSuccess misclassifies")
	}
}
