package store

import (
	"testing"

	"rubin.dev/node/consensus"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	datadir := t.TempDir()
	db, err := Open(datadir, "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenFreshStoreHasNoManifest(t *testing.T) {
	db := openTestDB(t)
	if db.Manifest() != nil {
		t.Fatalf("a freshly opened store must have no manifest")
	}
}

func TestInitGenesisSeedsFreshStore(t *testing.T) {
	db := openTestDB(t)
	if err := InitGenesis(db); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	if db.Manifest() == nil {
		t.Fatalf("expected a manifest after InitGenesis")
	}
	if db.Manifest().TipHeight != 0 {
		t.Fatalf("expected tip height 0, got %d", db.Manifest().TipHeight)
	}

	stored, ok, err := db.GetBlockByHeight(0)
	if err != nil || !ok {
		t.Fatalf("expected genesis stored at height 0: ok=%v err=%v", ok, err)
	}
	if err := consensus.VerifyGenesis(stored); err != nil {
		t.Fatalf("stored genesis does not verify: %v", err)
	}
}

func TestInitGenesisIdempotentOnReopen(t *testing.T) {
	datadir := t.TempDir()
	db1, err := Open(datadir, "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := InitGenesis(db1); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	if err := db1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(datadir, "test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if db2.Manifest() == nil {
		t.Fatalf("expected manifest to persist across reopen")
	}
	if err := InitGenesis(db2); err != nil {
		t.Fatalf("InitGenesis on reopened store must be a no-op: %v", err)
	}
}

func TestPutGetBlockByHeightAndHash(t *testing.T) {
	db := openTestDB(t)
	if err := InitGenesis(db); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	genesis := consensus.Genesis()

	b, ok, err := db.GetBlockByHash(genesis.Hash())
	if err != nil || !ok {
		t.Fatalf("GetBlockByHash: ok=%v err=%v", ok, err)
	}
	if b.Header.Height != 0 {
		t.Fatalf("expected height 0")
	}

	_, ok, err = db.GetBlockByHeight(1)
	if err != nil {
		t.Fatalf("GetBlockByHeight(1): %v", err)
	}
	if ok {
		t.Fatalf("expected no block at height 1 yet")
	}
}

func TestPutAndGetIndex(t *testing.T) {
	db := openTestDB(t)
	genesis := consensus.Genesis()
	work := consensus.BlockWork(genesis.Header.Target)
	entry := BlockIndexEntry{Height: 0, CumulativeWork: work, Status: BlockStatusValid}
	if err := db.PutIndex(genesis.Hash(), entry); err != nil {
		t.Fatalf("PutIndex: %v", err)
	}

	got, ok, err := db.GetIndex(genesis.Hash())
	if err != nil || !ok {
		t.Fatalf("GetIndex: ok=%v err=%v", ok, err)
	}
	if got.Height != 0 || got.Status != BlockStatusValid || got.CumulativeWork.Cmp(work) != 0 {
		t.Fatalf("unexpected index entry: %+v", got)
	}
}

func TestUTXOSetPutAndGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	point := consensus.TxOutPoint{Txid: [32]byte{0x01}, Index: 0}
	entry := consensus.UTXO{Value: 500, PubkeyHash: []byte{1, 2, 3, 4}, Height: 1}

	if err := db.PutUTXOSet(map[consensus.TxOutPoint]consensus.UTXO{point: entry}, nil); err != nil {
		t.Fatalf("PutUTXOSet: %v", err)
	}
	got, ok, err := db.GetUTXO(point)
	if err != nil || !ok {
		t.Fatalf("GetUTXO: ok=%v err=%v", ok, err)
	}
	if got.Value != 500 || got.Height != 1 {
		t.Fatalf("unexpected UTXO entry: %+v", got)
	}

	if err := db.PutUTXOSet(nil, []consensus.TxOutPoint{point}); err != nil {
		t.Fatalf("PutUTXOSet (delete): %v", err)
	}
	if _, ok, err := db.GetUTXO(point); err != nil || ok {
		t.Fatalf("expected the entry to be gone after deletion: ok=%v err=%v", ok, err)
	}
}

func TestPutAndGetUndoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	hash := [32]byte{0xaa}
	rec := UndoRecord{
		Spent: []UndoSpent{{
			OutPoint:      consensus.TxOutPoint{Txid: [32]byte{0x01}, Index: 0},
			RestoredEntry: consensus.UTXO{Value: 100, PubkeyHash: []byte{1, 2}, Height: 1},
		}},
		Created: []consensus.TxOutPoint{{Txid: [32]byte{0x02}, Index: 0}},
	}
	if err := db.PutUndo(hash, rec); err != nil {
		t.Fatalf("PutUndo: %v", err)
	}
	got, ok, err := db.GetUndo(hash)
	if err != nil || !ok {
		t.Fatalf("GetUndo: ok=%v err=%v", ok, err)
	}
	if len(got.Spent) != 1 || len(got.Created) != 1 {
		t.Fatalf("unexpected undo record: %+v", got)
	}
	if got.Spent[0].RestoredEntry.Value != 100 {
		t.Fatalf("unexpected restored value: %d", got.Spent[0].RestoredEntry.Value)
	}
}

func TestLoadChainAndLoadUTXOSet(t *testing.T) {
	db := openTestDB(t)
	if err := InitGenesis(db); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	genesis := consensus.Genesis()
	applied := consensus.RebuildUTXOSet([]consensus.Block{*genesis})

	chain, err := LoadChain(db, 0)
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if len(chain) != 1 || chain[0].Hash() != genesis.Hash() {
		t.Fatalf("unexpected loaded chain: %+v", chain)
	}

	loadedUTXO, err := LoadUTXOSet(db)
	if err != nil {
		t.Fatalf("LoadUTXOSet: %v", err)
	}
	if len(loadedUTXO) != len(applied) {
		t.Fatalf("loaded UTXO set size mismatch: got %d want %d", len(loadedUTXO), len(applied))
	}
}
