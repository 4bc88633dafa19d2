// Package node is the single-writer orchestration layer around the
// consensus package and its store collaborator: it owns the in-memory
// canonical chain and UTXO set, serializes every mutation behind one
// mutex (spec.md §5: "single synchronous append path, no concurrent
// mutation"), and turns consensus accept/reject/reorg outcomes into
// structured log events. It performs no consensus logic of its own —
// every rule lives in the consensus package; this layer only sequences
// calls into it and commits their results to disk.
package node

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"rubin.dev/node/consensus"
	"rubin.dev/node/node/store"
)

// Engine is the mutex-protected append/reorg orchestrator for one chain.
// Grounded on the teacher's node/sync.go and node/chainstate.go, which
// together play the same role (single entry point mutating chain state
// and persisting the result) over the teacher's covenant-era data model.
type Engine struct {
	mu sync.Mutex

	db     *store.DB
	chain  []consensus.Block
	utxo   consensus.UTXOSet
	work   consensus.LegacyWorkIndex
	logger zerolog.Logger
}

// NewEngine opens an Engine over an already-initialized store (db must
// have had store.InitGenesis run against it) and loads the canonical
// chain and UTXO set into memory.
func NewEngine(db *store.DB, logger zerolog.Logger) (*Engine, error) {
	manifest := db.Manifest()
	if manifest == nil {
		return nil, fmt.Errorf("engine: store has no manifest; call store.InitGenesis first")
	}

	chain, err := store.LoadChain(db, manifest.TipHeight)
	if err != nil {
		return nil, fmt.Errorf("engine: load chain: %w", err)
	}
	utxo, err := store.LoadUTXOSet(db)
	if err != nil {
		return nil, fmt.Errorf("engine: load utxo set: %w", err)
	}

	e := &Engine{
		db:     db,
		chain:  chain,
		utxo:   utxo,
		work:   make(consensus.LegacyWorkIndex, len(chain)),
		logger: logger,
	}
	var parentWork *big.Int
	for i := range chain {
		parentWork = e.work.Record(&chain[i], parentWork)
	}
	return e, nil
}

// Height reports the current canonical tip height.
func (e *Engine) Height() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.chain) - 1)
}

// Tip returns the hash of the current canonical tip.
func (e *Engine) Tip() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain[len(e.chain)-1].Hash()
}

// AppendBlock validates b as the immediate successor of the current tip
// and, on acceptance, commits it: persists the block, its undo record,
// its index entry, and finally the manifest (spec.md §4.9/§5 — the
// manifest write is always last, so a crash mid-append is recoverable
// from either the old or the new tip, never an in-between state).
func (e *Engine) AppendBlock(b *consensus.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := b.Header.Timestamp
	result, err := consensus.ValidateAndApplyBlock(e.chain, b, e.utxo, now)
	if err != nil {
		e.logger.Warn().
			Uint64("height", b.Header.Height).
			Str("hash", hashHex(b.Hash())).
			Err(err).
			Msg("block rejected")
		return err
	}

	before := e.utxo
	undo := store.RecordUndo(before, b)
	hash := b.Hash()

	if err := e.db.PutBlock(b); err != nil {
		return fmt.Errorf("append block: put block: %w", err)
	}
	if err := e.db.PutUndo(hash, undo); err != nil {
		return fmt.Errorf("append block: put undo: %w", err)
	}
	if err := e.db.PutUTXOSet(addedFromUndo(undo, result), removedFromUndo(undo)); err != nil {
		return fmt.Errorf("append block: put utxo set: %w", err)
	}
	work := consensus.BlockWork(b.Header.Target)
	if len(e.chain) > 0 {
		parentHash := e.chain[len(e.chain)-1].Hash()
		if parentWork, ok := e.work[parentHash]; ok {
			work = new(big.Int).Add(parentWork, work)
		}
	}
	if err := e.db.PutIndex(hash, store.BlockIndexEntry{
		Height:         b.Header.Height,
		PrevHash:       b.Header.PrevHash,
		CumulativeWork: work,
		Status:         store.BlockStatusValid,
	}); err != nil {
		return fmt.Errorf("append block: put index: %w", err)
	}

	manifest := &store.Manifest{
		SchemaVersion:        store.SchemaVersionV1,
		ChainIDHex:           e.db.Manifest().ChainIDHex,
		TipHashHex:           hashHex(hash),
		TipHeight:            b.Header.Height,
		TipCumulativeWorkDec: work.String(),
	}
	if err := e.db.SetManifest(manifest); err != nil {
		return fmt.Errorf("append block: set manifest: %w", err)
	}

	e.utxo = result
	e.chain = append(e.chain, *b)
	e.work[hash] = work

	e.logger.Info().
		Uint64("height", b.Header.Height).
		Str("hash", hashHex(hash)).
		Msg("block accepted")
	return nil
}

// TryReorg evaluates candidate (a full chain rooted at the canonical
// genesis) against the current chain per spec.md §4.9: admissible and
// strictly more cumulative work wins. On acceptance it disconnects back
// to the fork point and replays candidate forward, persisting the new
// tip manifest last. It returns false, nil when candidate loses fork
// choice — that is not an error, just not a reorg.
//
// Which fork-choice mechanism decides "more work" is itself ruleset-gated
// (spec.md §4.9/§9: the v4 per-block cumulative-work map and the v5
// whole-candidate-chain comparison are distinct, not unified): once the
// current tip has activated the hardened ruleset, BetterChain's direct
// cumulative-work comparison applies; before that, the legacy per-hash
// LegacyWorkIndex decision (LegacyBetterChain) is used instead, matching
// how a v4-era chain's own history would have picked its tip.
func (e *Engine) TryReorg(candidate []consensus.Block) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	genesis := consensus.Genesis()
	if err := consensus.IsAdmissibleChain(genesis, candidate); err != nil {
		return false, err
	}

	currentTip := e.chain[len(e.chain)-1]
	var wins bool
	if consensus.RulesetForHeight(currentTip.Header.Height) == consensus.RulesetV5 {
		wins = consensus.BetterChain(e.chain, candidate)
	} else {
		wins = consensus.LegacyBetterChain(e.chain, candidate)
	}
	if !wins {
		e.logger.Debug().Msg("candidate chain rejected: insufficient work")
		return false, nil
	}

	forkHeight := commonAncestorHeight(e.chain, candidate)

	workingUtxo := e.utxo.Clone()
	if err := store.Disconnect(e.db, workingUtxo, uint64(len(e.chain)-1), forkHeight); err != nil {
		return false, fmt.Errorf("reorg: disconnect: %w", err)
	}
	if err := store.Connect(e.db, workingUtxo, candidate, forkHeight); err != nil {
		e.logger.Warn().Err(err).Msg("reorg candidate failed transaction replay")
		return false, err
	}

	tip := candidate[len(candidate)-1]
	hash := tip.Hash()
	work := consensus.CumulativeWork(candidate)
	manifest := &store.Manifest{
		SchemaVersion:        store.SchemaVersionV1,
		ChainIDHex:           e.db.Manifest().ChainIDHex,
		TipHashHex:           hashHex(hash),
		TipHeight:            tip.Header.Height,
		TipCumulativeWorkDec: work.String(),
	}
	if err := e.db.SetManifest(manifest); err != nil {
		return false, fmt.Errorf("reorg: set manifest: %w", err)
	}

	e.chain = append([]consensus.Block(nil), candidate...)
	e.utxo = workingUtxo
	e.work[hash] = work

	e.logger.Info().
		Uint64("fork_height", forkHeight).
		Uint64("new_height", tip.Header.Height).
		Str("new_tip", hashHex(hash)).
		Msg("reorg applied")
	return true, nil
}

// addedFromUndo and removedFromUndo translate an UndoRecord into the
// added/removed arguments store.PutUTXOSet expects, so a block's on-disk
// UTXO delta is written alongside its undo record rather than requiring a
// full-set rewrite on every append (spec.md §4.7/§4.9: the undo record and
// the forward delta are two views of the same fold step).
func addedFromUndo(undo store.UndoRecord, after consensus.UTXOSet) map[consensus.TxOutPoint]consensus.UTXO {
	added := make(map[consensus.TxOutPoint]consensus.UTXO, len(undo.Created))
	for _, op := range undo.Created {
		if entry, ok := after[op]; ok {
			added[op] = entry
		}
	}
	return added
}

func removedFromUndo(undo store.UndoRecord) []consensus.TxOutPoint {
	removed := make([]consensus.TxOutPoint, len(undo.Spent))
	for i, s := range undo.Spent {
		removed[i] = s.OutPoint
	}
	return removed
}

// commonAncestorHeight returns the height of the last block shared by
// both chains. Both are assumed to be rooted at the same genesis.
func commonAncestorHeight(a, b []consensus.Block) uint64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	last := uint64(0)
	for i := 0; i < n; i++ {
		if a[i].Hash() != b[i].Hash() {
			break
		}
		last = uint64(i)
	}
	return last
}

func hashHex(h [32]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, bb := range h {
		out[i*2] = hexdigits[bb>>4]
		out[i*2+1] = hexdigits[bb&0x0f]
	}
	return string(out)
}
