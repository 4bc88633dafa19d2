package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"rubin.dev/node/consensus"
)

// LoadUTXOSet reads the entire persisted UTXO set into memory. Consensus
// validation (consensus.ValidateAndApplyBlock) operates on an in-memory
// consensus.UTXOSet; the store only persists the result.
func LoadUTXOSet(db *DB) (consensus.UTXOSet, error) {
	set := make(consensus.UTXOSet)
	err := db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUtxo).ForEach(func(k, v []byte) error {
			point, err := decodeOutpointKey(k)
			if err != nil {
				return err
			}
			entry, err := decodeUtxoEntry(v)
			if err != nil {
				return err
			}
			set[point] = entry
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load utxo set: %w", err)
	}
	return set, nil
}

// LoadChain reads the canonical chain from genesis up to and including
// tipHeight, in height order, as stored on disk. Used to reassemble the
// []consensus.Block slice that consensus.ValidateAndApplyBlock and
// consensus.IsAdmissibleChain both take as their "chain so far" argument.
func LoadChain(db *DB, tipHeight uint64) ([]consensus.Block, error) {
	chain := make([]consensus.Block, 0, tipHeight+1)
	for h := uint64(0); h <= tipHeight; h++ {
		b, ok, err := db.GetBlockByHeight(h)
		if err != nil {
			return nil, fmt.Errorf("load chain: height %d: %w", h, err)
		}
		if !ok {
			return nil, fmt.Errorf("load chain: missing block at height %d", h)
		}
		chain = append(chain, *b)
	}
	return chain, nil
}

// Disconnect walks the canonical chain backward from fromHeight down to
// (but not including) forkHeight, reversing each block's effect on the
// in-memory UTXO set via its stored undo record (spec.md §4.9's reorg
// primitive). It does not touch the manifest or height index — callers
// finish the reorg by connecting the winning chain and committing a new
// manifest in one step, so a crash mid-reorg never leaves a manifest
// pointing at a half-unwound tip.
func Disconnect(db *DB, utxo consensus.UTXOSet, fromHeight, forkHeight uint64) error {
	for h := fromHeight; h > forkHeight; h-- {
		hash, ok, err := db.HashAtHeight(h)
		if err != nil {
			return fmt.Errorf("disconnect: hash at height %d: %w", h, err)
		}
		if !ok {
			return fmt.Errorf("disconnect: no block recorded at height %d", h)
		}
		undo, ok, err := db.GetUndo(hash)
		if err != nil {
			return fmt.Errorf("disconnect: undo for height %d: %w", h, err)
		}
		if !ok {
			return fmt.Errorf("disconnect: no undo record for height %d", h)
		}
		ApplyUndo(utxo, undo)

		added := make(map[consensus.TxOutPoint]consensus.UTXO, len(undo.Spent))
		for _, s := range undo.Spent {
			added[s.OutPoint] = s.RestoredEntry
		}
		if err := db.PutUTXOSet(added, undo.Created); err != nil {
			return fmt.Errorf("disconnect: put utxo set at height %d: %w", h, err)
		}
	}
	return nil
}

// Connect replays candidate (a full chain from genesis, already checked
// header-admissible by consensus.IsAdmissibleChain) from fromHeight+1
// onward, fully transaction-validating each block via
// consensus.ValidateAndApplyBlock (spec.md §4.9: admissibility alone never
// suffices to switch chains — the winning candidate's transactions are
// replayed in full before it becomes canonical). utxo is updated in place
// only as each block succeeds; a rejection midway leaves utxo reflecting
// every block connected so far, which the caller must discard.
func Connect(db *DB, utxo consensus.UTXOSet, candidate []consensus.Block, fromHeight uint64) error {
	for h := fromHeight + 1; h < uint64(len(candidate)); h++ {
		block := &candidate[h]
		before := utxo.Clone()
		result, err := consensus.ValidateAndApplyBlock(candidate[:h], block, utxo, block.Header.Timestamp)
		if err != nil {
			return fmt.Errorf("connect: height %d: %w", h, err)
		}
		for k := range utxo {
			delete(utxo, k)
		}
		for k, v := range result {
			utxo[k] = v
		}

		undo := RecordUndo(before, block)
		hash := block.Hash()
		if err := db.PutUndo(hash, undo); err != nil {
			return fmt.Errorf("connect: put undo at height %d: %w", h, err)
		}
		if err := db.PutBlock(block); err != nil {
			return fmt.Errorf("connect: put block at height %d: %w", h, err)
		}
		added := make(map[consensus.TxOutPoint]consensus.UTXO, len(undo.Created))
		for _, op := range undo.Created {
			if entry, ok := utxo[op]; ok {
				added[op] = entry
			}
		}
		removed := make([]consensus.TxOutPoint, len(undo.Spent))
		for i, s := range undo.Spent {
			removed[i] = s.OutPoint
		}
		if err := db.PutUTXOSet(added, removed); err != nil {
			return fmt.Errorf("connect: put utxo set at height %d: %w", h, err)
		}
	}
	return nil
}
