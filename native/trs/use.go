package trs

import (
	"math/big"

	"aionchain/core/types"
	"aionchain/native/common"
	"aionchain/state"
)

// Use contract operation tags.
const (
	opDeposit byte = 0x00
)

// Bit masks of the account metadata byte as the deposit path writes them.
// The roles are swapped relative to the head and prev sentinels: within this
// byte 0x80 marks a live list member and 0x40 marks a null next pointer.
// The reference node shipped with this asymmetry and the stored bytes are
// consensus-critical, so it is reproduced here rather than repaired.
const (
	acctInListBit   byte = 0x80
	acctNextNullBit byte = 0x40
)

// UseContract is the state-changing entry point of the TRS contract family
// for depositors. Deposit is its only operation wired so far; the remaining
// operations share the same persistence core.
type UseContract struct {
	TRS
}

// NewUseContract binds the use contract to a tracking store and the calling
// address.
func NewUseContract(track state.WordStore, caller types.Address) *UseContract {
	return &UseContract{TRS: TRS{track: track, caller: caller}}
}

// Execute dispatches a use-contract operation.
//
// Input framing: byte 0 is the operation tag, followed by the operation
// payload. Deposit (0x00) expects contract(32) ‖ amount(128), 161 bytes in
// total, with amount read as an unsigned big-endian integer.
func (c *UseContract) Execute(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	if len(input) == 0 {
		return types.Fail(types.Failure, 0), nil
	}
	if res := common.CheckEnergy(nrgLimit, Cost); res != nil {
		return res, nil
	}
	switch input[0] {
	case opDeposit:
		return c.deposit(input, nrgLimit)
	default:
		return types.Fail(types.Failure, 0), nil
	}
}

// deposit moves funds from the caller's account into the TRS contract,
// enrolling the caller in the depositor list on their first non-zero
// deposit. Deposits are only accepted while the contract is unlocked and not
// yet live.
func (c *UseContract) deposit(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	const (
		indexAddress = 1
		indexAmount  = 33
		inputLen     = 161
	)
	if len(input) != inputLen {
		return types.Fail(types.Failure, 0), nil
	}

	contract, err := types.AddressFromBytes(input[indexAddress:indexAmount])
	if err != nil {
		return types.Fail(types.Failure, 0), nil
	}
	specs, ok := c.GetContractSpecs(contract)
	if !ok {
		return types.Fail(types.Failure, 0), nil
	}

	// Depositing requires direct deposits to be enabled unless the caller
	// owns the contract.
	owner, _ := c.GetContractOwner(contract)
	if c.caller != owner && !specs.IsDirectDeposit {
		return types.Fail(types.Failure, 0), nil
	}

	if specs.IsLocked || specs.IsLive {
		return types.Fail(types.Failure, 0), nil
	}

	amount := types.DecodeUnsigned(input[indexAmount:inputLen])

	if c.track.GetBalance(c.caller).Cmp(amount) < 0 {
		return types.Fail(types.InsufficientBalance, 0), nil
	}

	// A zero deposit succeeds without enrolling the depositor.
	if amount.Sign() > 0 {
		curr, err := c.fetchDepositBalance(contract, c.caller)
		if err != nil {
			return nil, err
		}
		if !c.setDepositBalance(contract, c.caller, new(big.Int).Add(curr, amount)) {
			return types.Fail(types.Failure, 0), nil
		}
		if err := c.updateLinkedList(contract); err != nil {
			return nil, err
		}

		total, err := c.GetTotalBalance(contract)
		if err != nil {
			return nil, err
		}
		if err := c.setTotalBalance(contract, new(big.Int).Add(total, amount)); err != nil {
			return nil, err
		}
		c.track.AddBalance(c.caller, new(big.Int).Neg(amount))
		if err := c.track.Flush(); err != nil {
			return nil, err
		}
	}

	return types.Succeed(nrgLimit-Cost, nil), nil
}

// updateLinkedList proposes adding the caller to the depositor list. A caller
// whose metadata already carries the in-list bit is left where it is: entries
// are enrolled on first deposit only and never reordered.
func (c *UseContract) updateLinkedList(contract types.Address) error {
	acctData := c.accountData(contract, c.caller)
	if acctData[0]&acctInListBit == acctInListBit {
		return nil
	}
	acctData[0] |= acctInListBit

	// Point the caller's next entry at the current head.
	headData, err := c.headData(contract)
	if err != nil {
		return err
	}
	if headData[0]&nullBit == nullBit {
		acctData[0] |= acctNextNullBit
	} else {
		acctData[0] &^= acctNextNullBit
		copy(acctData[1:], headData[1:state.DoubleWordSize])

		// The displaced head gains the caller as its predecessor.
		currHead := make([]byte, types.AddressLength)
		copy(currHead, headData[:types.AddressLength])
		currHead[0] = types.AccountPrefix
		currHeadPrev := make([]byte, state.DoubleWordSize)
		copy(currHeadPrev[1:], c.caller[1:])
		c.putPreviousData(contract, currHead, currHeadPrev)
	}

	// The caller becomes the new head with a null predecessor.
	headData[0] &^= nullBit
	copy(headData[1:], c.caller[1:])

	prevData := c.previousData(contract, c.caller[:])
	prevData[0] = nullBit

	c.putAccountData(contract, c.caller, acctData)
	c.setListHead(contract, headData)
	c.putPreviousData(contract, c.caller[:], prevData)
	return nil
}

// fetchDepositBalance reads the caller-facing deposit balance: zero unless
// the account's metadata exists and carries the in-list bit.
func (c *UseContract) fetchDepositBalance(contract types.Address, account types.Address) (*big.Int, error) {
	value, ok := c.track.GetStorageValue(contract, acctKey(account[:]))
	if !ok {
		return big.NewInt(0), nil
	}
	meta := value.Bytes()
	if meta[0]&acctInListBit == 0x00 {
		return big.NewInt(0), nil
	}
	return c.readBalanceRows(contract, account, int(meta[0]&0x0F))
}

// setDepositBalance writes the balance rows and refreshes the metadata byte
// using the deposit path's bit convention: a fresh entry carries the
// next-null bit and the row count, an existing entry keeps its next-null bit
// and gains the in-list bit.
func (c *UseContract) setDepositBalance(contract types.Address, account types.Address, balance *big.Int) bool {
	if balance.Cmp(big.NewInt(1)) < 0 {
		return false
	}
	bal := toDoubleWordAligned(balance)
	numRows := len(bal) / state.DoubleWordSize
	if numRows > maxDepositRows {
		return false
	}
	c.writeBalanceRows(contract, account, bal, numRows)

	value, ok := c.track.GetStorageValue(contract, acctKey(account[:]))
	var meta state.DoubleWord
	if !ok {
		meta[0] = acctNextNullBit | byte(numRows)
	} else {
		copy(meta[:], value.Bytes())
		meta[0] = (meta[0] & acctNextNullBit) | acctInListBit | byte(numRows)
	}
	c.track.AddStorageRow(contract, acctKey(account[:]), meta)
	return true
}
