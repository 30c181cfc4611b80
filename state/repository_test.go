package state

import (
	"bytes"
	"math/big"
	"testing"

	"aionchain/core/types"
	"aionchain/storage"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[0] = types.AccountPrefix
	a[31] = b
	return a
}

func TestRepositoryStorageWidthPreserved(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(1)

	var key DataWord
	key[0] = 0xE0
	var single DataWord
	single[15] = 0x7
	repo.AddStorageRow(addr, key, single)

	var dkey DoubleWord
	dkey[0] = 0xB0
	var double DoubleWord
	double[31] = 0x9
	repo.AddStorageRow(addr, dkey, double)

	got, ok := repo.GetStorageValue(addr, key)
	if !ok {
		t.Fatal("single-word row missing")
	}
	if got.Size() != SingleWordSize {
		t.Fatalf("single-word value came back %d bytes", got.Size())
	}
	got, ok = repo.GetStorageValue(addr, dkey)
	if !ok {
		t.Fatal("double-word row missing")
	}
	if got.Size() != DoubleWordSize {
		t.Fatalf("double-word value came back %d bytes", got.Size())
	}
}

func TestRepositoryTrackingFlush(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(2)
	var key DataWord
	key[0] = 0x80
	var value DataWord
	value[0] = 0x1

	child := repo.StartTracking()
	child.AddStorageRow(addr, key, value)
	child.AddBalance(addr, big.NewInt(500))
	child.IncrementNonce(addr)

	// Nothing is visible in the parent before the flush.
	if _, ok := repo.GetStorageValue(addr, key); ok {
		t.Fatal("unflushed row visible in parent")
	}
	if repo.GetBalance(addr).Sign() != 0 {
		t.Fatal("unflushed balance visible in parent")
	}

	if err := child.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok := repo.GetStorageValue(addr, key); !ok {
		t.Fatal("flushed row missing in parent")
	}
	if repo.GetBalance(addr).Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("parent balance = %s", repo.GetBalance(addr))
	}
	if repo.GetNonce(addr).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("parent nonce = %s", repo.GetNonce(addr))
	}
}

func TestRepositoryTrackingRollback(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(3)
	repo.AddBalance(addr, big.NewInt(100))

	child := repo.StartTracking()
	child.AddBalance(addr, big.NewInt(-40))
	var key DataWord
	child.AddStorageRow(addr, key, DataWord{0x1})
	// The child is dropped without a flush.

	if repo.GetBalance(addr).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance changed without flush: %s", repo.GetBalance(addr))
	}
	if _, ok := repo.GetStorageValue(addr, key); ok {
		t.Fatal("row leaked without flush")
	}
}

func TestRepositoryChildReadsThroughParent(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(4)
	var key DataWord
	key[0] = 0xF0
	repo.AddStorageRow(addr, key, DataWord{0xAA})
	repo.AddBalance(addr, big.NewInt(77))

	child := repo.StartTracking()
	value, ok := child.GetStorageValue(addr, key)
	if !ok || value.Bytes()[0] != 0xAA {
		t.Fatal("child does not see parent row")
	}
	if child.GetBalance(addr).Cmp(big.NewInt(77)) != 0 {
		t.Fatal("child does not see parent balance")
	}

	// A child overwrite shadows the parent until flushed.
	child.AddStorageRow(addr, key, DataWord{0xBB})
	value, _ = child.GetStorageValue(addr, key)
	if value.Bytes()[0] != 0xBB {
		t.Fatal("child write not visible to child")
	}
	value, _ = repo.GetStorageValue(addr, key)
	if value.Bytes()[0] != 0xAA {
		t.Fatal("child write leaked into parent")
	}
}

func TestRepositoryPersistsToDatabase(t *testing.T) {
	db := storage.NewMemDB()
	addr := testAddr(5)
	var key DoubleWord
	key[0] = 0x60
	var value DoubleWord
	value[0] = 0x80

	repo := NewRepository(db)
	repo.AddStorageRow(addr, key, value)
	repo.AddBalance(addr, big.NewInt(12345))
	repo.IncrementNonce(addr)
	if err := repo.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reopened := NewRepository(db)
	got, ok := reopened.GetStorageValue(addr, key)
	if !ok {
		t.Fatal("row not persisted")
	}
	if !bytes.Equal(got.Bytes(), value.Bytes()) {
		t.Fatalf("persisted row = %x", got.Bytes())
	}
	if got.Size() != DoubleWordSize {
		t.Fatalf("persisted row width = %d", got.Size())
	}
	if reopened.GetBalance(addr).Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("persisted balance = %s", reopened.GetBalance(addr))
	}
	if reopened.GetNonce(addr).Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("persisted nonce = %s", reopened.GetNonce(addr))
	}
}

func TestRepositoryLevelDBRoundTrip(t *testing.T) {
	db, err := storage.NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()

	addr := testAddr(6)
	var key DataWord
	key[0] = 0x91

	repo := NewRepository(db)
	repo.AddStorageRow(addr, key, DataWord{0x0, 0x1})
	if err := repo.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	reopened := NewRepository(db)
	got, ok := reopened.GetStorageValue(addr, key)
	if !ok {
		t.Fatal("row not persisted to leveldb")
	}
	if got.Bytes()[1] != 0x1 {
		t.Fatalf("persisted row = %x", got.Bytes())
	}
}

func TestRepositoryCreateAccountResets(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(7)
	repo.AddBalance(addr, big.NewInt(50))
	repo.IncrementNonce(addr)
	repo.CreateAccount(addr)
	if repo.GetBalance(addr).Sign() != 0 || repo.GetNonce(addr).Sign() != 0 {
		t.Fatal("CreateAccount did not reset the account")
	}
}

func TestRepositoryExists(t *testing.T) {
	repo := NewRepository(nil)
	addr := testAddr(8)
	if repo.Exists(addr) {
		t.Fatal("absent account reported present")
	}
	repo.CreateAccount(addr)
	if !repo.Exists(addr) {
		t.Fatal("created account reported absent")
	}

	// A child sees the parent's accounts.
	child := repo.StartTracking()
	if !child.Exists(addr) {
		t.Fatal("child does not see parent account")
	}
}
