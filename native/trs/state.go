package trs

import (
	"aionchain/core/types"
	"aionchain/crypto"
	"aionchain/native/common"
	"aionchain/state"
)

// State contract operation tags.
const (
	opCreate byte = 0x00
	opLock   byte = 0x01
	opStart  byte = 0x02
)

const createPayloadLen = 15

// StateContract is the owner-facing entry point of the TRS contract family:
// it creates contracts and drives them through the unlocked → locked → live
// lifecycle.
type StateContract struct {
	TRS
}

// NewStateContract binds the state contract to a tracking store and the
// calling address.
func NewStateContract(track state.WordStore, caller types.Address) *StateContract {
	return &StateContract{TRS: TRS{track: track, caller: caller}}
}

// Execute dispatches a state-contract operation.
//
// Input framing: byte 0 is the operation tag.
//
//	create (0x00): isTest(1) ‖ isDirectDeposit(1) ‖ periods(2 BE) ‖
//	               percent(9 BE) ‖ precision(1); returns the new contract
//	               address.
//	lock   (0x01): contract(32); owner only, unlocked and not live.
//	start  (0x02): contract(32); owner only, locked and not live.
func (c *StateContract) Execute(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	if len(input) == 0 {
		return types.Fail(types.Failure, 0), nil
	}
	if res := common.CheckEnergy(nrgLimit, Cost); res != nil {
		return res, nil
	}
	switch input[0] {
	case opCreate:
		return c.create(input, nrgLimit)
	case opLock:
		return c.lock(input, nrgLimit)
	case opStart:
		return c.start(input, nrgLimit)
	default:
		return types.Fail(types.Failure, 0), nil
	}
}

// DeriveContractAddress computes the deterministic address of the TRS
// contract the given account would create at the given nonce.
func DeriveContractAddress(creator types.Address, nonce types.Scalar) types.Address {
	preimage := append(creator.Bytes(), nonce.EncodeSigned()...)
	h := crypto.Hash32(preimage)
	var contract types.Address
	copy(contract[:], h[:])
	contract[0] = types.TRSPrefix
	return contract
}

// create materialises a new TRS contract owned by the caller: specs, owner
// record, an empty depositor list and a zeroed total-balance accumulator.
// The address derives from the caller and their current nonce, which is
// consumed by the creation.
func (c *StateContract) create(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	if len(input) != createPayloadLen {
		return types.Fail(types.Failure, 0), nil
	}
	isTest := input[1] == 0x1
	isDirectDeposit := input[2] == 0x1
	if input[1] > 0x1 || input[2] > 0x1 {
		return types.Fail(types.Failure, 0), nil
	}
	periods := uint16(input[3])<<8 | uint16(input[4])
	percent := types.DecodeUnsigned(input[5:14])
	precision := input[14]

	nonce := c.track.GetNonce(c.caller)
	contract := DeriveContractAddress(c.caller, types.NewScalar(nonce))
	if _, ok := c.GetContractSpecs(contract); ok {
		return types.Fail(types.Failure, 0), nil
	}

	c.setContractOwner(contract)
	c.setContractSpecs(contract, isTest, isDirectDeposit, periods, percent, precision)
	c.setListHead(contract, nil)
	c.initTotalBalance(contract)
	c.track.CreateAccount(contract)
	c.track.IncrementNonce(c.caller)
	if err := c.track.Flush(); err != nil {
		return nil, err
	}
	return types.Succeed(nrgLimit-Cost, contract.Bytes()), nil
}

// lock moves an unlocked, not-yet-live contract into the locked stage,
// closing it to further deposits.
func (c *StateContract) lock(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	contract, specs, res := c.ownerOperand(input)
	if res != nil {
		return res, nil
	}
	if specs.IsLocked || specs.IsLive {
		return types.Fail(types.Failure, 0), nil
	}
	c.setLock(contract)
	if err := c.track.Flush(); err != nil {
		return nil, err
	}
	return types.Succeed(nrgLimit-Cost, nil), nil
}

// start moves a locked contract into the live stage, opening withdrawals.
func (c *StateContract) start(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	contract, specs, res := c.ownerOperand(input)
	if res != nil {
		return res, nil
	}
	if !specs.IsLocked || specs.IsLive {
		return types.Fail(types.Failure, 0), nil
	}
	c.setLive(contract)
	if err := c.track.Flush(); err != nil {
		return nil, err
	}
	return types.Succeed(nrgLimit-Cost, nil), nil
}

// ownerOperand parses the single contract-address operand shared by the
// lifecycle operations and enforces that the caller owns an existing
// contract.
func (c *StateContract) ownerOperand(input []byte) (types.Address, *Specs, *types.PrecompiledResult) {
	if len(input) != 1+types.AddressLength {
		return types.Address{}, nil, types.Fail(types.Failure, 0)
	}
	contract, err := types.AddressFromBytes(input[1:])
	if err != nil {
		return types.Address{}, nil, types.Fail(types.Failure, 0)
	}
	specs, ok := c.GetContractSpecs(contract)
	if !ok {
		return types.Address{}, nil, types.Fail(types.Failure, 0)
	}
	owner, ok := c.GetContractOwner(contract)
	if !ok || owner != c.caller {
		return types.Address{}, nil, types.Fail(types.Failure, 0)
	}
	return contract, specs, nil
}
