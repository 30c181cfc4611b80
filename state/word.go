package state

import "fmt"

// Storage word widths. Every key and value handed to the repository is either
// a single word or a double word; nothing else round-trips.
const (
	SingleWordSize = 16
	DoubleWordSize = 32
)

// Word is a fixed-width storage key or value.
type Word interface {
	// Bytes returns a copy of the word contents.
	Bytes() []byte
	// Size returns the word width in bytes.
	Size() int
}

// DataWord is a 16-byte storage word.
type DataWord [SingleWordSize]byte

func (w DataWord) Bytes() []byte {
	out := make([]byte, SingleWordSize)
	copy(out, w[:])
	return out
}

func (w DataWord) Size() int { return SingleWordSize }

// DoubleWord is a 32-byte storage word.
type DoubleWord [DoubleWordSize]byte

func (w DoubleWord) Bytes() []byte {
	out := make([]byte, DoubleWordSize)
	copy(out, w[:])
	return out
}

func (w DoubleWord) Size() int { return DoubleWordSize }

// NewWord wraps b in the word type matching its width.
func NewWord(b []byte) (Word, error) {
	switch len(b) {
	case SingleWordSize:
		var w DataWord
		copy(w[:], b)
		return w, nil
	case DoubleWordSize:
		var w DoubleWord
		copy(w[:], b)
		return w, nil
	default:
		return nil, fmt.Errorf("state: incorrect word size: %d", len(b))
	}
}

// MustWord wraps b or panics on a width violation. Word widths are fixed by
// the storage layouts, so a violation is a programming error.
func MustWord(b []byte) Word {
	w, err := NewWord(b)
	if err != nil {
		panic(err)
	}
	return w
}
