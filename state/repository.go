package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"aionchain/core/types"
	"aionchain/storage"
)

// WordStore is the storage surface the precompiled contracts run against:
// word-addressed rows per contract address plus the standard account slots.
// Writes stay in the store's cache until Flush commits them to the layer
// below; discarding a tracking child without flushing rolls its writes back.
type WordStore interface {
	GetStorageValue(addr types.Address, key Word) (Word, bool)
	AddStorageRow(addr types.Address, key, value Word)
	GetBalance(addr types.Address) *big.Int
	AddBalance(addr types.Address, delta *big.Int)
	GetNonce(addr types.Address) *big.Int
	IncrementNonce(addr types.Address)
	CreateAccount(addr types.Address)
	Exists(addr types.Address) bool
	Flush() error
}

var (
	acctDBPrefix = []byte("a:")
	rowDBPrefix  = []byte("s:")
)

type account struct {
	Nonce   *big.Int
	Balance *big.Int
}

func newAccount() *account {
	return &account{Nonce: big.NewInt(0), Balance: big.NewInt(0)}
}

func (a *account) copy() *account {
	return &account{Nonce: new(big.Int).Set(a.Nonce), Balance: new(big.Int).Set(a.Balance)}
}

// storedAccount is the RLP shape persisted for an account slot.
type storedAccount struct {
	Nonce   *big.Int
	Balance *big.Int
}

// Repository is the layered implementation of WordStore. A root repository
// optionally persists into a storage.Database; tracking children buffer
// writes in memory and merge into their parent on Flush.
type Repository struct {
	parent   *Repository
	db       storage.Database
	accounts map[types.Address]*account
	rows     map[types.Address]map[string]Word
	err      error
}

// NewRepository creates a root repository. db may be nil for a purely
// in-memory state.
func NewRepository(db storage.Database) *Repository {
	return &Repository{
		db:       db,
		accounts: make(map[types.Address]*account),
		rows:     make(map[types.Address]map[string]Word),
	}
}

// StartTracking layers a child cache over r. The child sees r's state and
// buffers its own writes until Flush.
func (r *Repository) StartTracking() *Repository {
	return &Repository{
		parent:   r,
		accounts: make(map[types.Address]*account),
		rows:     make(map[types.Address]map[string]Word),
	}
}

// Err reports the first backend I/O fault observed by the repository. Reads
// never fail the caller directly; a faulted repository refuses to flush.
func (r *Repository) Err() error { return r.err }

func (r *Repository) fault(err error) {
	if r.err == nil {
		r.err = err
	}
}

// GetStorageValue returns the word stored for (addr, key) and whether it
// exists. Widths are preserved: a value written as a single word is returned
// as a single word.
func (r *Repository) GetStorageValue(addr types.Address, key Word) (Word, bool) {
	rawKey := string(key.Bytes())
	for repo := r; repo != nil; repo = repo.parent {
		if rows, ok := repo.rows[addr]; ok {
			if value, ok := rows[rawKey]; ok {
				return value, true
			}
		}
		if repo.parent == nil {
			return repo.loadRow(addr, rawKey)
		}
	}
	return nil, false
}

func (r *Repository) loadRow(addr types.Address, rawKey string) (Word, bool) {
	if r.db == nil {
		return nil, false
	}
	raw, err := r.db.Get(rowDBKey(addr, rawKey))
	if err != nil {
		r.fault(fmt.Errorf("state: load row: %w", err))
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	value, err := NewWord(raw)
	if err != nil {
		r.fault(fmt.Errorf("state: corrupt row for %s: %w", addr, err))
		return nil, false
	}
	return value, true
}

// AddStorageRow records value under (addr, key). The write is buffered until
// Flush.
func (r *Repository) AddStorageRow(addr types.Address, key, value Word) {
	rows, ok := r.rows[addr]
	if !ok {
		rows = make(map[string]Word)
		r.rows[addr] = rows
	}
	rows[string(key.Bytes())] = value
}

func (r *Repository) getAccount(addr types.Address) *account {
	for repo := r; repo != nil; repo = repo.parent {
		if acct, ok := repo.accounts[addr]; ok {
			return acct.copy()
		}
		if repo.parent == nil && repo.db != nil {
			raw, err := repo.db.Get(acctDBKey(addr))
			if err != nil {
				repo.fault(fmt.Errorf("state: load account: %w", err))
				return nil
			}
			if raw == nil {
				return nil
			}
			var stored storedAccount
			if err := rlp.DecodeBytes(raw, &stored); err != nil {
				repo.fault(fmt.Errorf("state: corrupt account %s: %w", addr, err))
				return nil
			}
			return &account{Nonce: stored.Nonce, Balance: stored.Balance}
		}
	}
	return nil
}

// CreateAccount initialises addr with zero balance and nonce. An existing
// account is reset.
func (r *Repository) CreateAccount(addr types.Address) {
	r.accounts[addr] = newAccount()
}

// Exists reports whether addr carries an account record.
func (r *Repository) Exists(addr types.Address) bool {
	return r.getAccount(addr) != nil
}

// GetBalance returns the account balance, zero for an absent account.
func (r *Repository) GetBalance(addr types.Address) *big.Int {
	if acct := r.getAccount(addr); acct != nil {
		return acct.Balance
	}
	return big.NewInt(0)
}

// AddBalance adds delta (which may be negative) to the account balance,
// creating the account if needed.
func (r *Repository) AddBalance(addr types.Address, delta *big.Int) {
	acct := r.getAccount(addr)
	if acct == nil {
		acct = newAccount()
	}
	acct.Balance = new(big.Int).Add(acct.Balance, delta)
	r.accounts[addr] = acct
}

// GetNonce returns the account nonce, zero for an absent account.
func (r *Repository) GetNonce(addr types.Address) *big.Int {
	if acct := r.getAccount(addr); acct != nil {
		return acct.Nonce
	}
	return big.NewInt(0)
}

// IncrementNonce bumps the account nonce by one, creating the account if
// needed.
func (r *Repository) IncrementNonce(addr types.Address) {
	acct := r.getAccount(addr)
	if acct == nil {
		acct = newAccount()
	}
	acct.Nonce = new(big.Int).Add(acct.Nonce, big.NewInt(1))
	r.accounts[addr] = acct
}

// Flush commits the buffered writes one layer down: into the parent cache
// for a tracking child, or into the backing database at the root. The local
// buffers stay populated so the repository remains a read cache.
func (r *Repository) Flush() error {
	if r.err != nil {
		return r.err
	}
	if r.parent != nil {
		for addr, acct := range r.accounts {
			r.parent.accounts[addr] = acct.copy()
		}
		for addr, rows := range r.rows {
			dst, ok := r.parent.rows[addr]
			if !ok {
				dst = make(map[string]Word)
				r.parent.rows[addr] = dst
			}
			for key, value := range rows {
				dst[key] = value
			}
		}
		return nil
	}
	if r.db == nil {
		return nil
	}
	for addr, acct := range r.accounts {
		raw, err := rlp.EncodeToBytes(&storedAccount{Nonce: acct.Nonce, Balance: acct.Balance})
		if err != nil {
			return fmt.Errorf("state: encode account %s: %w", addr, err)
		}
		if err := r.db.Put(acctDBKey(addr), raw); err != nil {
			return fmt.Errorf("state: persist account %s: %w", addr, err)
		}
	}
	for addr, rows := range r.rows {
		for key, value := range rows {
			if err := r.db.Put(rowDBKey(addr, key), value.Bytes()); err != nil {
				return fmt.Errorf("state: persist row for %s: %w", addr, err)
			}
		}
	}
	return nil
}

func acctDBKey(addr types.Address) []byte {
	out := make([]byte, 0, len(acctDBPrefix)+types.AddressLength)
	out = append(out, acctDBPrefix...)
	return append(out, addr[:]...)
}

func rowDBKey(addr types.Address, rawKey string) []byte {
	out := make([]byte, 0, len(rowDBPrefix)+types.AddressLength+len(rawKey))
	out = append(out, rowDBPrefix...)
	out = append(out, addr[:]...)
	return append(out, rawKey...)
}
