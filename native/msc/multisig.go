package msc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"aionchain/core/types"
	"aionchain/crypto"
	"aionchain/native/common"
	"aionchain/state"
)

// Cost is the flat energy charge for every multi-signature operation.
const Cost = 21000

// Wallet limits. A wallet carries between MinOwners and MaxOwners owners and
// requires at least MinThreshold of them to sign.
const (
	MinOwners    = 2
	MaxOwners    = 10
	MinThreshold = 2
)

// AmountSize is the fixed width of the amount field in a send-transaction
// payload.
const AmountSize = 128

// Operation tags.
const (
	opCreateWallet byte = 0x00
	opSendTx       byte = 0x01
)

// Storage key prefixes inside a wallet account. Owner addresses are split
// across two single-word rows; the meta row stores threshold and owner
// count.
const (
	ownerLowPrefix  byte = 0x00
	ownerHighPrefix byte = 0x40
	metaPrefix      byte = 0x80
)

var errMissingOwnerRow = errors.New("msc: wallet owner row missing")

// Contract is the multi-signature wallet precompile. It holds no state of its
// own; every wallet lives in the word store under the wallet's address.
type Contract struct {
	track  state.WordStore
	caller types.Address
}

// New binds the contract to a tracking store and the calling address.
func New(track state.WordStore, caller types.Address) *Contract {
	return &Contract{track: track, caller: caller}
}

// Execute dispatches a multi-signature operation.
//
// Input framing: byte 0 is the operation tag: 0x00 create-wallet, 0x01
// send-transaction.
func (c *Contract) Execute(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	if res := common.CheckEnergy(nrgLimit, Cost); res != nil {
		return res, nil
	}
	if len(input) == 0 {
		return types.Fail(types.Failure, 0), nil
	}
	switch input[0] {
	case opCreateWallet:
		return c.createWallet(input, nrgLimit)
	case opSendTx:
		return c.sendTransaction(input, nrgLimit)
	default:
		return types.Fail(types.Failure, 0), nil
	}
}

// ConstructCreateWalletInput assembles the create-wallet payload:
// tag ‖ threshold(8 BE) ‖ owner addresses.
func ConstructCreateWalletInput(threshold uint64, owners []types.Address) []byte {
	input := make([]byte, 0, 9+len(owners)*types.AddressLength)
	input = append(input, opCreateWallet)
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], threshold)
	input = append(input, t[:]...)
	for _, owner := range owners {
		input = append(input, owner[:]...)
	}
	return input
}

// ConstructSendTxInput assembles the send-transaction payload:
// tag ‖ wallet ‖ signatures ‖ amount(128) ‖ nrgPrice(8 BE) ‖ to.
func ConstructSendTxInput(wallet types.Address, signatures []crypto.Signature, amount *big.Int, nrgPrice uint64, to types.Address) ([]byte, error) {
	amt, err := types.NewScalar(amount).EncodeUnsignedPadded(AmountSize)
	if err != nil {
		return nil, err
	}
	input := make([]byte, 0, 1+types.AddressLength+len(signatures)*crypto.SignatureSize+AmountSize+8+types.AddressLength)
	input = append(input, opSendTx)
	input = append(input, wallet[:]...)
	for _, sig := range signatures {
		input = append(input, sig.Bytes()...)
	}
	input = append(input, amt...)
	var price [8]byte
	binary.BigEndian.PutUint64(price[:], nrgPrice)
	input = append(input, price[:]...)
	input = append(input, to[:]...)
	return input, nil
}

// ConstructMsg builds the canonical message every signer of a send
// transaction must sign: nonce ‖ to ‖ amount ‖ nrgLimit(8 BE) ‖
// nrgPrice(8 BE), with nonce and amount in minimal two's-complement form.
func ConstructMsg(nonce *big.Int, to types.Address, amount *big.Int, nrgLimit, nrgPrice uint64) []byte {
	nonceBytes := types.NewScalar(nonce).EncodeSigned()
	amountBytes := types.NewScalar(amount).EncodeSigned()
	msg := make([]byte, 0, len(nonceBytes)+types.AddressLength+len(amountBytes)+16)
	msg = append(msg, nonceBytes...)
	msg = append(msg, to[:]...)
	msg = append(msg, amountBytes...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nrgLimit)
	msg = append(msg, buf[:]...)
	binary.BigEndian.PutUint64(buf[:], nrgPrice)
	msg = append(msg, buf[:]...)
	return msg
}

// WalletAddress derives the deterministic wallet address for a creation
// input: the 32-byte hash of threshold ‖ owners with the ordinary account
// prefix forced onto the first byte.
func WalletAddress(threshold uint64, owners []types.Address) types.Address {
	preimage := make([]byte, 0, 8+len(owners)*types.AddressLength)
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], threshold)
	preimage = append(preimage, t[:]...)
	for _, owner := range owners {
		preimage = append(preimage, owner[:]...)
	}
	h := crypto.Hash32(preimage)
	var wallet types.Address
	copy(wallet[:], h[:])
	wallet[0] = types.AccountPrefix
	return wallet
}

// createWallet validates a create-wallet payload and materialises the wallet
// record. Creation is deterministic in its inputs, so re-creating an
// existing wallet fails on the already-populated meta row.
func (c *Contract) createWallet(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	payload := input[1:]
	if len(payload) < 8 || (len(payload)-8)%types.AddressLength != 0 {
		return types.Fail(types.Failure, 0), nil
	}
	threshold := binary.BigEndian.Uint64(payload[:8])
	rest := payload[8:]
	n := len(rest) / types.AddressLength
	if n < MinOwners || n > MaxOwners {
		return types.Fail(types.Failure, 0), nil
	}
	if threshold < MinThreshold || threshold > uint64(n) {
		return types.Fail(types.Failure, 0), nil
	}

	owners := make([]types.Address, n)
	seen := make(map[types.Address]struct{}, n)
	callerIsOwner := false
	for i := 0; i < n; i++ {
		owner, err := types.AddressFromBytes(rest[i*types.AddressLength : (i+1)*types.AddressLength])
		if err != nil {
			return types.Fail(types.Failure, 0), nil
		}
		if _, dup := seen[owner]; dup {
			return types.Fail(types.Failure, 0), nil
		}
		// A wallet cannot own a wallet, and reserved prefixes cannot own
		// anything.
		if owner.Prefix() == types.TRSPrefix || c.isWallet(owner) {
			return types.Fail(types.Failure, 0), nil
		}
		seen[owner] = struct{}{}
		owners[i] = owner
		if owner == c.caller {
			callerIsOwner = true
		}
	}
	if !callerIsOwner {
		return types.Fail(types.Failure, 0), nil
	}

	wallet := WalletAddress(threshold, owners)
	if c.isWallet(wallet) {
		return types.Fail(types.Failure, 0), nil
	}

	for i, owner := range owners {
		var low, high state.DataWord
		copy(low[:], owner[:state.SingleWordSize])
		copy(high[:], owner[state.SingleWordSize:])
		c.track.AddStorageRow(wallet, ownerRowKey(ownerLowPrefix, uint64(i)), low)
		c.track.AddStorageRow(wallet, ownerRowKey(ownerHighPrefix, uint64(i)), high)
	}
	var meta state.DataWord
	binary.BigEndian.PutUint64(meta[:8], threshold)
	binary.BigEndian.PutUint64(meta[8:], uint64(n))
	c.track.AddStorageRow(wallet, metaKey(), meta)
	c.track.CreateAccount(wallet)
	if err := c.track.Flush(); err != nil {
		return nil, err
	}
	return types.Succeed(nrgLimit-Cost, wallet.Bytes()), nil
}

// sendTransaction validates a signed transfer out of a wallet and applies it.
func (c *Contract) sendTransaction(input []byte, nrgLimit uint64) (*types.PrecompiledResult, error) {
	// tag ‖ wallet ‖ k signatures ‖ amount ‖ nrgPrice ‖ to
	fixed := 1 + types.AddressLength + AmountSize + 8 + types.AddressLength
	sigsLen := len(input) - fixed
	if sigsLen < crypto.SignatureSize || sigsLen%crypto.SignatureSize != 0 {
		return types.Fail(types.Failure, 0), nil
	}
	k := sigsLen / crypto.SignatureSize
	if k > MaxOwners {
		return types.Fail(types.Failure, 0), nil
	}

	wallet, err := types.AddressFromBytes(input[1 : 1+types.AddressLength])
	if err != nil {
		return types.Fail(types.Failure, 0), nil
	}
	if wallet.Prefix() != types.AccountPrefix || !c.isWallet(wallet) {
		return types.Fail(types.Failure, 0), nil
	}

	threshold, owners, err := c.walletOwners(wallet)
	if err != nil {
		return nil, err
	}
	ownerSet := make(map[types.Address]struct{}, len(owners))
	for _, owner := range owners {
		ownerSet[owner] = struct{}{}
	}
	if _, ok := ownerSet[c.caller]; !ok {
		return types.Fail(types.Failure, 0), nil
	}

	amountOffset := 1 + types.AddressLength + k*crypto.SignatureSize
	amount := types.DecodeUnsigned(input[amountOffset : amountOffset+AmountSize])
	nrgPrice := binary.BigEndian.Uint64(input[amountOffset+AmountSize : amountOffset+AmountSize+8])
	to, err := types.AddressFromBytes(input[amountOffset+AmountSize+8:])
	if err != nil {
		return types.Fail(types.Failure, 0), nil
	}

	msg := ConstructMsg(c.track.GetNonce(wallet), to, amount, nrgLimit, nrgPrice)

	signers := make(map[types.Address]struct{}, k)
	for i := 0; i < k; i++ {
		start := 1 + types.AddressLength + i*crypto.SignatureSize
		sig, err := crypto.ParseSignature(input[start : start+crypto.SignatureSize])
		if err != nil {
			return types.Fail(types.Failure, 0), nil
		}
		if !sig.Verify(msg) {
			return types.Fail(types.Failure, 0), nil
		}
		signer := sig.Recover()
		if _, ok := ownerSet[signer]; !ok {
			return types.Fail(types.Failure, 0), nil
		}
		if _, dup := signers[signer]; dup {
			return types.Fail(types.Failure, 0), nil
		}
		signers[signer] = struct{}{}
	}
	if uint64(k) < threshold || k > len(owners) {
		return types.Fail(types.Failure, 0), nil
	}

	if c.track.GetBalance(wallet).Cmp(amount) < 0 {
		return types.Fail(types.InsufficientBalance, 0), nil
	}

	c.track.AddBalance(wallet, new(big.Int).Neg(amount))
	c.track.AddBalance(to, amount)
	c.track.IncrementNonce(wallet)
	if err := c.track.Flush(); err != nil {
		return nil, err
	}
	return types.Succeed(nrgLimit-Cost, nil), nil
}

// isWallet reports whether addr carries a wallet meta row.
func (c *Contract) isWallet(addr types.Address) bool {
	_, ok := c.track.GetStorageValue(addr, metaKey())
	return ok
}

// walletOwners reads the threshold and the full owner list of a wallet. A
// missing owner row under a populated meta row is an invariant breach.
func (c *Contract) walletOwners(wallet types.Address) (uint64, []types.Address, error) {
	value, ok := c.track.GetStorageValue(wallet, metaKey())
	if !ok {
		return 0, nil, fmt.Errorf("msc: wallet %s has no meta row", wallet)
	}
	meta := value.Bytes()
	threshold := binary.BigEndian.Uint64(meta[:8])
	count := binary.BigEndian.Uint64(meta[8:])

	owners := make([]types.Address, 0, count)
	for i := uint64(0); i < count; i++ {
		low, ok := c.track.GetStorageValue(wallet, ownerRowKey(ownerLowPrefix, i))
		if !ok {
			return 0, nil, fmt.Errorf("%w: low half %d of %s", errMissingOwnerRow, i, wallet)
		}
		high, ok := c.track.GetStorageValue(wallet, ownerRowKey(ownerHighPrefix, i))
		if !ok {
			return 0, nil, fmt.Errorf("%w: high half %d of %s", errMissingOwnerRow, i, wallet)
		}
		var owner types.Address
		copy(owner[:state.SingleWordSize], low.Bytes())
		copy(owner[state.SingleWordSize:], high.Bytes())
		owners = append(owners, owner)
	}
	return threshold, owners, nil
}

// ownerRowKey builds the single-word key of one half of owner record i: the
// prefix byte selects the half, the row index sits big-endian in the low
// eight bytes.
func ownerRowKey(prefix byte, i uint64) state.DataWord {
	var k state.DataWord
	k[0] = prefix
	binary.BigEndian.PutUint64(k[8:], i)
	return k
}

func metaKey() state.DataWord {
	var k state.DataWord
	k[0] = metaPrefix
	return k
}
