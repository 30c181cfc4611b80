package state

import (
	"bytes"
	"testing"
)

func TestNewWordWidthDispatch(t *testing.T) {
	single := make([]byte, SingleWordSize)
	single[0] = 0xAB
	w, err := NewWord(single)
	if err != nil {
		t.Fatalf("single word: %v", err)
	}
	if _, ok := w.(DataWord); !ok {
		t.Fatalf("16-byte input produced %T", w)
	}
	if w.Size() != SingleWordSize || !bytes.Equal(w.Bytes(), single) {
		t.Fatalf("single word did not round trip: %x", w.Bytes())
	}

	double := make([]byte, DoubleWordSize)
	double[DoubleWordSize-1] = 0x01
	w, err = NewWord(double)
	if err != nil {
		t.Fatalf("double word: %v", err)
	}
	if _, ok := w.(DoubleWord); !ok {
		t.Fatalf("32-byte input produced %T", w)
	}

	for _, n := range []int{0, 1, 15, 17, 31, 33} {
		if _, err := NewWord(make([]byte, n)); err == nil {
			t.Fatalf("expected error for %d-byte word", n)
		}
	}
}

func TestMustWordPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustWord did not panic on bad width")
		}
	}()
	MustWord(make([]byte, 5))
}

func TestWordBytesAreCopies(t *testing.T) {
	var w DataWord
	w[0] = 0x11
	b := w.Bytes()
	b[0] = 0x99
	if w[0] != 0x11 {
		t.Fatal("Bytes aliases the word")
	}
}
