package consensus

import "math/big"

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// BlockWork computes block_work(target) = floor(2^256 / (target+1))
// (spec.md §4.9/GLOSSARY). Grounded on the teacher's WorkFromTarget in
// fork_choice.go, which computes floor(2^256/target); spec.md's formula
// adds one to the denominator so MaxTarget still yields a positive,
// non-overflowing work value, and this implementation follows the spec
// over the teacher where the two disagree.
func BlockWork(target [32]byte) *big.Int {
	denom := new(big.Int).Add(asU256BE(target), big.NewInt(1))
	return new(big.Int).Div(twoTo256, denom)
}

// CumulativeWork sums BlockWork over every block in chain (spec.md §4.9).
func CumulativeWork(chain []Block) *big.Int {
	total := new(big.Int)
	for i := range chain {
		total.Add(total, BlockWork(chain[i].Header.Target))
	}
	return total
}

// IsAdmissibleChain checks spec.md §4.9's admissibility predicate for a
// candidate chain considered during fork choice: non-empty, rooted at the
// canonical genesis, with consecutive heights, correct linkage, the
// version-gated expected target at every height, and valid proof-of-work.
// It does NOT validate transactions — spec.md §4.9 defines admissibility
// purely in terms of headers and linkage; full transaction replay happens
// only if the candidate wins selection (the engine then rebuilds the UTXO
// set over it, which will itself reject invalid transactions).
func IsAdmissibleChain(genesis *Block, candidate []Block) error {
	if len(candidate) == 0 {
		return rejectf(ErrBadLinkage, "candidate chain is empty")
	}
	if candidate[0].Hash() != genesis.Hash() {
		return rejectf(ErrBadLinkage, "candidate chain does not root at canonical genesis")
	}
	for i := 1; i < len(candidate); i++ {
		b := &candidate[i]
		if b.Header.Height != uint64(i) {
			return rejectf(ErrBadHeight, "candidate block %d has height %d", i, b.Header.Height)
		}
		if b.Header.PrevHash != candidate[i-1].Hash() {
			return rejectf(ErrBadLinkage, "candidate block %d does not link to its predecessor", i)
		}
		ruleset := RulesetForHeight(b.Header.Height)
		expected, err := NextTarget(candidate[:i], b.Header.Height, ruleset)
		if err != nil {
			return err
		}
		if b.Header.Target != expected {
			return rejectf(ErrBadDifficulty, "candidate block %d target mismatch", i)
		}
		if err := VerifyPoW(b); err != nil {
			return err
		}
	}
	return nil
}

// BetterChain reports whether candidate has strictly greater cumulative
// work than current (spec.md §4.9: "Ties are broken by preferring the
// current chain — no reorg on equal work"). Both chains are assumed
// already admissible.
func BetterChain(current, candidate []Block) bool {
	return CumulativeWork(candidate).Cmp(CumulativeWork(current)) > 0
}

// LegacyWorkIndex is the v4 fork-choice structure (spec.md §4.9): a
// per-block cumulative-work map keyed by block hash, where each block's
// cumulative work is its parent's cumulative plus its own. Grounded on the
// teacher's node/store.BlockIndexEntry.CumulativeWork field, which persists
// exactly this quantity per block hash.
type LegacyWorkIndex map[[32]byte]*big.Int

// Record inserts block's cumulative work into the index, given its
// parent's already-recorded cumulative work (zero for genesis).
func (idx LegacyWorkIndex) Record(block *Block, parentWork *big.Int) *big.Int {
	if parentWork == nil {
		parentWork = new(big.Int)
	}
	work := new(big.Int).Add(parentWork, BlockWork(block.Header.Target))
	idx[block.Hash()] = work
	return work
}

// Tip returns the hash with maximum recorded cumulative work. Among hashes
// tied at that maximum it returns whichever Go's map iteration visits
// first, so the tie-break is not deterministic; callers needing one must
// decide ties themselves (LegacyBetterChain below does, and node/engine.go
// never re-scans this map to pick its tip).
func (idx LegacyWorkIndex) Tip() ([32]byte, *big.Int, bool) {
	var best [32]byte
	var bestWork *big.Int
	found := false
	for h, w := range idx {
		if !found || w.Cmp(bestWork) > 0 {
			best, bestWork, found = h, w, true
		}
	}
	return best, bestWork, found
}

// LegacyBetterChain implements the v4 fork-choice decision (spec.md §4.9):
// both chains' blocks are recorded into one shared LegacyWorkIndex keyed by
// hash (blocks common to both chains naturally record the same cumulative
// work under the same hash), and candidate wins only if the index's
// max-work tip is candidate's own tip. Tip() alone cannot express a
// deterministic tie-break over a Go map, so a tie is broken the same way
// BetterChain's is — by requiring candidate's recorded work to strictly
// exceed current's rather than merely matching the index's reported max.
func LegacyBetterChain(current, candidate []Block) bool {
	if len(current) == 0 || len(candidate) == 0 {
		return false
	}
	idx := make(LegacyWorkIndex, len(current)+len(candidate))
	var parentWork *big.Int
	for i := range current {
		parentWork = idx.Record(&current[i], parentWork)
	}
	parentWork = nil
	for i := range candidate {
		parentWork = idx.Record(&candidate[i], parentWork)
	}

	tipHash, _, ok := idx.Tip()
	if !ok || tipHash != candidate[len(candidate)-1].Hash() {
		return false
	}
	return idx[tipHash].Cmp(idx[current[len(current)-1].Hash()]) > 0
}
