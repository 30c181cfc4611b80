package trs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"aionchain/core/types"
	"aionchain/state"
)

// Cost is the flat energy charge for every TRS operation.
const Cost = 21000

// Storage layout constants. Every byte here is consensus-critical: the keys
// and value encodings must match the reference node bit for bit.
const (
	balancePrefix  byte = 0xB0
	listPrevPrefix byte = 0x60
	fundsPrefix    byte = 0x90

	maxDepositRows = 16

	nullBit  byte = 0x80
	validBit byte = 0x40
)

// Single-word keys with fixed prefixes.
var (
	ownerKey      = fixedKey(0xF0)
	specsKey      = fixedKey(0xE0)
	fundsSpecsKey = fixedKey(0x91)
	listHeadKey   = fixedKey(0x70)
)

// Double-word value sentinels: the null entry (null bit set, no body) and the
// invalid entry (all zero) marking a logically deleted account.
var (
	null32Value  = nullValue()
	invalidValue = state.DoubleWord{}
)

var (
	errNoList        = errors.New("trs: contract has no depositor list")
	errNoPrev        = errors.New("trs: account has no previous entry")
	errNoNext        = errors.New("trs: account has no next entry")
	errNoFundsSpecs  = errors.New("trs: contract has no total balance specs")
	errMissingRow    = errors.New("trs: missing balance row")
	errNegativeTotal = errors.New("trs: set total balance to negative value")
)

func fixedKey(prefix byte) state.DataWord {
	var k state.DataWord
	k[0] = prefix
	return k
}

func nullValue() state.DoubleWord {
	var v state.DoubleWord
	v[0] = nullBit
	return v
}

// Specs is the decoded 16-byte policy record of a TRS contract.
type Specs struct {
	Percent         *big.Int
	IsTest          bool
	IsDirectDeposit bool
	Precision       uint8
	Periods         uint16
	IsLocked        bool
	IsLive          bool

	raw state.DataWord
}

// Byte offsets within the specs record.
const (
	testOffset      = 9
	dirDepoOffset   = 10
	precisionOffset = 11
	periodsOffset   = 12
	lockOffset      = 14
	liveOffset      = 15
)

func decodeSpecs(raw state.DataWord) *Specs {
	return &Specs{
		Percent:         new(big.Int).SetBytes(raw[:testOffset]),
		IsTest:          raw[testOffset] == 0x1,
		IsDirectDeposit: raw[dirDepoOffset] == 0x1,
		Precision:       raw[precisionOffset],
		Periods:         binary.BigEndian.Uint16(raw[periodsOffset : periodsOffset+2]),
		IsLocked:        raw[lockOffset] == 0x1,
		IsLive:          raw[liveOffset] == 0x1,
		raw:             raw,
	}
}

// TRS is the persistence core shared by the TRS contract family. It owns the
// byte layout of every record and defers all writes to the caller's flush.
type TRS struct {
	track  state.WordStore
	caller types.Address
}

// GetContractSpecs returns the decoded specs record for contract, or false if
// contract is not a TRS contract or has no specs entry.
func (t *TRS) GetContractSpecs(contract types.Address) (*Specs, bool) {
	if contract.Prefix() != types.TRSPrefix {
		return nil, false
	}
	value, ok := t.track.GetStorageValue(contract, specsKey)
	if !ok {
		return nil, false
	}
	raw, ok := value.(state.DataWord)
	if !ok {
		return nil, false
	}
	return decodeSpecs(raw), true
}

// setContractSpecs writes the specs record for contract. The write happens at
// most once per contract: an existing record is left untouched. A percent
// wider than 9 bytes is truncated to its low 9 bytes.
func (t *TRS) setContractSpecs(contract types.Address, isTest, isDirectDeposit bool, periods uint16, percent *big.Int, precision uint8) {
	if _, ok := t.track.GetStorageValue(contract, specsKey); ok {
		return
	}
	var specs state.DataWord
	percentBytes := percent.Bytes()
	n := len(percentBytes)
	if n > testOffset {
		percentBytes = percentBytes[n-testOffset:]
		n = testOffset
	}
	copy(specs[testOffset-n:testOffset], percentBytes)
	if isTest {
		specs[testOffset] = 0x1
	}
	if isDirectDeposit {
		specs[dirDepoOffset] = 0x1
	}
	specs[precisionOffset] = precision
	binary.BigEndian.PutUint16(specs[periodsOffset:periodsOffset+2], periods)
	t.track.AddStorageRow(contract, specsKey, specs)
}

// GetContractOwner returns the owner address of contract, or false if no
// owner record exists.
func (t *TRS) GetContractOwner(contract types.Address) (types.Address, bool) {
	value, ok := t.track.GetStorageValue(contract, ownerKey)
	if !ok {
		return types.Address{}, false
	}
	owner, err := types.AddressFromBytes(value.Bytes())
	if err != nil {
		return types.Address{}, false
	}
	return owner, true
}

// setContractOwner records the caller as the owner of contract, at most once.
func (t *TRS) setContractOwner(contract types.Address) {
	if _, ok := t.track.GetStorageValue(contract, ownerKey); ok {
		return
	}
	var owner state.DoubleWord
	copy(owner[:], t.caller[:])
	t.track.AddStorageRow(contract, ownerKey, owner)
}

// headData returns the raw head entry including its flag byte, or an error if
// the contract has no list entry at all.
func (t *TRS) headData(contract types.Address) ([]byte, error) {
	value, ok := t.track.GetStorageValue(contract, listHeadKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoList, contract)
	}
	return value.Bytes(), nil
}

// GetListHead returns the 32-byte head entry of the depositor list, or nil if
// the list is empty. Bytes 1..31 are the head account's address body.
func (t *TRS) GetListHead(contract types.Address) ([]byte, error) {
	head, err := t.headData(contract)
	if err != nil {
		return nil, err
	}
	if head[0]&nullBit == nullBit {
		return nil, nil
	}
	return head, nil
}

// setListHead writes the list head. A nil head stores the null sentinel; a
// 32-byte head is stored with its flag byte cleared. Any other width is
// ignored.
func (t *TRS) setListHead(contract types.Address, head []byte) {
	if head == nil {
		t.track.AddStorageRow(contract, listHeadKey, null32Value)
		return
	}
	if len(head) != state.DoubleWordSize {
		return
	}
	var value state.DoubleWord
	copy(value[:], head)
	value[0] = 0x0
	t.track.AddStorageRow(contract, listHeadKey, value)
}

func prevKey(account []byte) state.DoubleWord {
	var k state.DoubleWord
	k[0] = listPrevPrefix
	copy(k[1:], account[1:state.DoubleWordSize])
	return k
}

func acctKey(account []byte) state.DoubleWord {
	var k state.DoubleWord
	copy(k[:], account)
	return k
}

// previousData returns account's raw previous entry, or a zero word when
// absent.
func (t *TRS) previousData(contract types.Address, account []byte) []byte {
	value, ok := t.track.GetStorageValue(contract, prevKey(account))
	if !ok {
		return make([]byte, state.DoubleWordSize)
	}
	return value.Bytes()
}

// putPreviousData stores a raw previous entry, flag byte included.
func (t *TRS) putPreviousData(contract types.Address, account, data []byte) {
	var value state.DoubleWord
	copy(value[:], data)
	t.track.AddStorageRow(contract, prevKey(account), value)
}

// GetListPrev returns account's predecessor entry, or nil when the previous
// pointer is null. A missing entry for an enlisted account is an invariant
// breach.
func (t *TRS) GetListPrev(contract types.Address, account types.Address) ([]byte, error) {
	value, ok := t.track.GetStorageValue(contract, prevKey(account[:]))
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoPrev, account)
	}
	prev := value.Bytes()
	if prev[0]&nullBit == nullBit {
		return nil, nil
	}
	return prev, nil
}

// setListPrev writes account's previous entry. A nil prev stores the null
// sentinel; a 32-byte prev is stored with its flag byte cleared.
func (t *TRS) setListPrev(contract types.Address, account, prev []byte) {
	key := prevKey(account)
	if prev == nil {
		t.track.AddStorageRow(contract, key, null32Value)
		return
	}
	if len(prev) != state.DoubleWordSize {
		return
	}
	var value state.DoubleWord
	copy(value[:], prev)
	value[0] = 0x0
	t.track.AddStorageRow(contract, key, value)
}

// accountData returns the raw metadata word stored under the account's own
// address, or a zero word when absent.
func (t *TRS) accountData(contract types.Address, account types.Address) []byte {
	value, ok := t.track.GetStorageValue(contract, acctKey(account[:]))
	if !ok {
		return make([]byte, state.DoubleWordSize)
	}
	return value.Bytes()
}

func (t *TRS) putAccountData(contract types.Address, account types.Address, data []byte) {
	var value state.DoubleWord
	copy(value[:], data)
	t.track.AddStorageRow(contract, acctKey(account[:]), value)
}

// GetListNextBytes returns account's raw next entry including the metadata
// byte, without interpreting the null bit.
func (t *TRS) GetListNextBytes(contract types.Address, account types.Address) ([]byte, error) {
	value, ok := t.track.GetStorageValue(contract, acctKey(account[:]))
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoNext, account)
	}
	return value.Bytes(), nil
}

// GetListNext returns account's successor entry, or nil when the next pointer
// is null.
func (t *TRS) GetListNext(contract types.Address, account types.Address) ([]byte, error) {
	next, err := t.GetListNextBytes(contract, account)
	if err != nil {
		return nil, err
	}
	if next[0]&nullBit == nullBit {
		return nil, nil
	}
	return next, nil
}

// setListNext writes account's next entry together with its metadata byte.
// When isValid is false the invalid sentinel is stored and the entry is
// logically deleted. Otherwise the old metadata byte is merged in exactly the
// way the reference node does: the whole byte is OR-ed and only the null bit
// is corrected afterwards.
func (t *TRS) setListNext(contract types.Address, account types.Address, oldMeta byte, next []byte, isValid bool) {
	key := acctKey(account[:])
	switch {
	case !isValid:
		t.track.AddStorageRow(contract, key, invalidValue)
	case next == nil:
		var value state.DoubleWord
		value[0] = nullBit | validBit | oldMeta
		t.track.AddStorageRow(contract, key, value)
	case len(next) == state.DoubleWordSize:
		var value state.DoubleWord
		copy(value[:], next)
		value[0] = (validBit | oldMeta) &^ nullBit
		t.track.AddStorageRow(contract, key, value)
	}
}

// AccountIsValid reports whether the valid bit is set in a raw next entry.
func AccountIsValid(next []byte) bool {
	return len(next) > 0 && next[0]&validBit == validBit
}

func totalBalanceKey(row int) state.DataWord {
	var k state.DataWord
	k[0] = fundsPrefix
	binary.BigEndian.PutUint32(k[state.SingleWordSize-4:], uint32(row))
	return k
}

func balanceKey(account types.Address, row int) state.DoubleWord {
	var k state.DoubleWord
	k[0] = balancePrefix | byte(row)
	copy(k[1:], account[1:])
	return k
}

// GetTotalBalance returns the contract's total deposit balance, assembled
// from the multi-row accumulator.
func (t *TRS) GetTotalBalance(contract types.Address) (*big.Int, error) {
	value, ok := t.track.GetStorageValue(contract, fundsSpecsKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoFundsSpecs, contract)
	}
	specs := value.Bytes()
	numRows := int(binary.BigEndian.Uint32(specs[state.SingleWordSize-4:]))
	if numRows == 0 {
		return big.NewInt(0), nil
	}
	balance := make([]byte, numRows*state.DoubleWordSize+1)
	for i := 0; i < numRows; i++ {
		row, ok := t.track.GetStorageValue(contract, totalBalanceKey(i))
		if !ok {
			return nil, fmt.Errorf("%w: total row %d of %s", errMissingRow, i, contract)
		}
		copy(balance[i*state.DoubleWordSize+1:], row.Bytes())
	}
	// The leading sentinel zero keeps the value non-negative.
	return new(big.Int).SetBytes(balance), nil
}

// setTotalBalance writes the total balance accumulator and its row-count
// record. A negative balance is an invariant breach.
func (t *TRS) setTotalBalance(contract types.Address, balance *big.Int) error {
	if balance.Sign() < 0 {
		return errNegativeTotal
	}
	bal := toDoubleWordAligned(balance)
	numRows := len(bal) / state.DoubleWordSize
	for i := 0; i < numRows; i++ {
		var row state.DoubleWord
		copy(row[:], bal[i*state.DoubleWordSize:(i+1)*state.DoubleWordSize])
		t.track.AddStorageRow(contract, totalBalanceKey(i), row)
	}
	var specs state.DataWord
	binary.BigEndian.PutUint32(specs[state.SingleWordSize-4:], uint32(numRows))
	t.track.AddStorageRow(contract, fundsSpecsKey, specs)
	return nil
}

// initTotalBalance writes an empty accumulator record so that total-balance
// reads on a fresh contract see zero rather than a missing entry.
func (t *TRS) initTotalBalance(contract types.Address) {
	var specs state.DataWord
	t.track.AddStorageRow(contract, fundsSpecsKey, specs)
}

// GetDepositBalance returns account's deposit balance, or zero when the
// account has no metadata entry or its valid bit is unset.
func (t *TRS) GetDepositBalance(contract types.Address, account types.Address) (*big.Int, error) {
	value, ok := t.track.GetStorageValue(contract, acctKey(account[:]))
	if !ok {
		return big.NewInt(0), nil
	}
	meta := value.Bytes()
	if meta[0]&validBit == 0x00 {
		return big.NewInt(0), nil
	}
	return t.readBalanceRows(contract, account, int(meta[0]&0x0F))
}

func (t *TRS) readBalanceRows(contract types.Address, account types.Address, numRows int) (*big.Int, error) {
	balance := make([]byte, numRows*state.DoubleWordSize+1)
	for i := 0; i < numRows; i++ {
		row, ok := t.track.GetStorageValue(contract, balanceKey(account, i))
		if !ok {
			return nil, fmt.Errorf("%w: deposit row %d of %s", errMissingRow, i, account)
		}
		copy(balance[i*state.DoubleWordSize+1:], row.Bytes())
	}
	return new(big.Int).SetBytes(balance), nil
}

// SetDepositBalance writes account's deposit balance rows and refreshes the
// metadata byte. Setting a balance below one is a no-op reported as success:
// zero is represented by the absence of rows. A balance needing more than
// maxDepositRows rows is rejected.
//
// A freshly created metadata entry carries the null bit and the row count but
// no valid bit; enlisting the account is a separate step.
func (t *TRS) SetDepositBalance(contract types.Address, account types.Address, balance *big.Int) bool {
	if balance.Cmp(big.NewInt(1)) < 0 {
		return true
	}
	bal := toDoubleWordAligned(balance)
	numRows := len(bal) / state.DoubleWordSize
	if numRows > maxDepositRows {
		return false
	}
	t.writeBalanceRows(contract, account, bal, numRows)

	value, ok := t.track.GetStorageValue(contract, acctKey(account[:]))
	var meta state.DoubleWord
	if !ok {
		meta[0] = nullBit | byte(numRows)
	} else {
		copy(meta[:], value.Bytes())
		meta[0] = (meta[0] & nullBit) | validBit | byte(numRows)
	}
	t.track.AddStorageRow(contract, acctKey(account[:]), meta)
	return true
}

func (t *TRS) writeBalanceRows(contract types.Address, account types.Address, bal []byte, numRows int) {
	for i := 0; i < numRows; i++ {
		var row state.DoubleWord
		copy(row[:], bal[i*state.DoubleWordSize:(i+1)*state.DoubleWordSize])
		t.track.AddStorageRow(contract, balanceKey(account, i), row)
	}
}

// setLock flips the locked byte in the specs record. The contract is assumed
// to be a valid TRS contract.
func (t *TRS) setLock(contract types.Address) {
	specs, ok := t.GetContractSpecs(contract)
	if !ok {
		return
	}
	raw := specs.raw
	raw[lockOffset] = 0x1
	t.track.AddStorageRow(contract, specsKey, raw)
}

// setLive flips the live byte in the specs record.
func (t *TRS) setLive(contract types.Address) {
	specs, ok := t.GetContractSpecs(contract)
	if !ok {
		return
	}
	raw := specs.raw
	raw[liveOffset] = 0x1
	t.track.AddStorageRow(contract, specsKey, raw)
}

// toDoubleWordAligned encodes a non-negative balance big-endian, padded so
// the length is a multiple of 32 bytes. A sign byte that would push an
// otherwise aligned value over a row boundary is stripped. Zero encodes as a
// single all-zero row.
func toDoubleWordAligned(balance *big.Int) []byte {
	if balance.Sign() == 0 {
		return make([]byte, state.DoubleWordSize)
	}
	temp := types.NewScalar(balance).EncodeSigned()
	chopFirstByte := (len(temp)-1)%state.DoubleWordSize == 0 && temp[0] == 0x0
	if chopFirstByte {
		numRows := (len(temp) - 1) / state.DoubleWordSize
		bal := make([]byte, numRows*state.DoubleWordSize)
		copy(bal[len(bal)-len(temp)+1:], temp[1:])
		return bal
	}
	numRows := (len(temp) + state.DoubleWordSize - 1) / state.DoubleWordSize
	bal := make([]byte, numRows*state.DoubleWordSize)
	copy(bal[len(bal)-len(temp):], temp)
	return bal
}
