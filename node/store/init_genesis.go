package store

import (
	"fmt"

	"rubin.dev/node/consensus"
)

// InitGenesis brings a store up to a usable state: if it already has a
// manifest, it verifies the stored height-0 block matches the canonical
// genesis (consensus.VerifyGenesis) and returns without writing anything.
// Otherwise it seeds the store fresh — genesis block, its index entry, its
// (empty) undo record, and an initial manifest — so every store this
// process ever opens is rooted at the same genesis (spec.md §4.1: genesis
// is fixed and verified, never re-derived).
func InitGenesis(db *DB) error {
	if db.Manifest() != nil {
		existing, ok, err := db.GetBlockByHeight(0)
		if err != nil {
			return fmt.Errorf("init genesis: read stored height-0 block: %w", err)
		}
		if !ok {
			return fmt.Errorf("init genesis: manifest present but height-0 block missing")
		}
		if err := consensus.VerifyGenesis(existing); err != nil {
			return err
		}
		return nil
	}

	genesis := consensus.Genesis()
	if err := consensus.VerifyGenesis(genesis); err != nil {
		return fmt.Errorf("init genesis: canonical genesis fails its own check: %w", err)
	}

	if err := db.PutBlock(genesis); err != nil {
		return fmt.Errorf("init genesis: put block: %w", err)
	}
	if err := db.PutUTXOSet(consensus.RebuildUTXOSet([]consensus.Block{*genesis}), nil); err != nil {
		return fmt.Errorf("init genesis: put utxo set: %w", err)
	}

	hash := genesis.Hash()
	work := consensus.BlockWork(genesis.Header.Target)
	if err := db.PutIndex(hash, BlockIndexEntry{
		Height:         0,
		PrevHash:       [32]byte{},
		CumulativeWork: work,
		Status:         BlockStatusValid,
	}); err != nil {
		return fmt.Errorf("init genesis: put index: %w", err)
	}

	if err := db.PutUndo(hash, UndoRecord{}); err != nil {
		return fmt.Errorf("init genesis: put undo: %w", err)
	}

	manifest := &Manifest{
		SchemaVersion:        SchemaVersionV1,
		ChainIDHex:           fmt.Sprintf("%x", hash[:4]),
		TipHashHex:           fmt.Sprintf("%x", hash),
		TipHeight:            0,
		TipCumulativeWorkDec: work.String(),
	}
	if err := db.SetManifest(manifest); err != nil {
		return fmt.Errorf("init genesis: write manifest: %w", err)
	}
	return nil
}
