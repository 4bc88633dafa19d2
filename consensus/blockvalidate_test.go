package consensus

import "testing"

// nextBlock mines a syntactically valid successor to chain's tip, paying
// the block reward to rewardKey, with its transactions replaced by txs if
// txs is non-nil (the caller must then supply its own coinbase as txs[0]).
func nextBlock(t *testing.T, chain []Block, rewardKey testKey, spacing int64, txs []Transaction) *Block {
	t.Helper()
	height := uint64(len(chain))
	if txs == nil {
		txs = []Transaction{makeCoinbase(BlockReward(height), rewardKey)}
	}
	ruleset := RulesetForHeight(height)
	target, err := NextTarget(chain, height, ruleset)
	if err != nil {
		t.Fatalf("NextTarget: %v", err)
	}
	header := BlockHeader{
		Height:     height,
		Timestamp:  chain[len(chain)-1].Header.Timestamp + spacing,
		PrevHash:   chain[len(chain)-1].Hash(),
		Target:     target,
		MerkleRoot: MerkleRootOfBlock(txs),
	}
	return mineBlock(t, header, txs)
}

func TestValidateAndApplyBlockHappyPath(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)

	utxo, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1)
	if err != nil {
		t.Fatalf("expected valid block: %v", err)
	}
	point := TxOutPoint{Txid: Txid(&b.Transactions[0]), Index: 0}
	if _, ok := utxo[point]; !ok {
		t.Fatalf("expected coinbase output in resulting UTXO set")
	}
}

func TestValidateAndApplyBlockRejectsBadHeight(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)
	b.Header.Height = 5
	b.Hash() // stale cache is fine here; ValidateAndApplyBlock checks Header.Height directly

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadHeight {
		t.Fatalf("expected BadHeight, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsBadLinkage(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)
	b.Header.PrevHash[0] ^= 0xff

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadLinkage {
		t.Fatalf("expected BadLinkage, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsBadTimestamp(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)

	// now far in the past relative to the block's timestamp: exceeds MaxFutureDrift.
	now := b.Header.Timestamp - MaxFutureDrift - 1
	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, now); CodeOf(err) != ErrBadTimestamp {
		t.Fatalf("expected BadTimestamp, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsBadDifficulty(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)
	b.Header.Target = MinTarget // does not match expected retarget at this height

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadDifficulty {
		t.Fatalf("expected BadDifficulty, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsMissingTransactions(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	height := uint64(len(chain))
	ruleset := RulesetForHeight(height)
	target, err := NextTarget(chain, height, ruleset)
	if err != nil {
		t.Fatalf("NextTarget: %v", err)
	}
	header := BlockHeader{
		Height:     height,
		Timestamp:  genesis.Header.Timestamp + 600,
		PrevHash:   genesis.Hash(),
		Target:     target,
		MerkleRoot: MerkleRootOfBlock(nil),
	}
	var dummy []Transaction
	b := mineBlock(t, header, dummy)
	_ = key

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadMerkle {
		t.Fatalf("expected BadMerkle for an empty transaction list, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsMerkleMismatch(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)
	// Re-mine after corrupting the root so the block still passes PoW,
	// which is checked before the Merkle rule.
	header := b.Header
	header.MerkleRoot[0] ^= 0xff
	b = mineBlock(t, header, b.Transactions)

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadMerkle {
		t.Fatalf("expected BadMerkle, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsMissingCoinbase(t *testing.T) {
	key := newTestKey(t)
	other := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}

	// An ordinary (non-coinbase) transaction standing alone as tx[0].
	tx := makeSpend([32]byte{0xaa}, 0, key, other, 100)
	b := nextBlock(t, chain, key, 600, []Transaction{tx})

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadCoinbase {
		t.Fatalf("expected BadCoinbase, got %v", err)
	}
}

func TestValidateAndApplyBlockCoinbaseNotSpendableInSameBlock(t *testing.T) {
	// The coinbase is folded first (spec.md §4.7: transactions fold in
	// strict index order, t=0 before t=1), so its output IS visible to a
	// same-block spend attempt — but it was created at this very height,
	// so it is always immature (spec.md §4.5 rule 4c), never merely absent.
	a := newTestKey(t)
	b2 := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}

	coinbase := makeCoinbase(BlockReward(1), a)
	coinbaseTxid := Txid(&coinbase)
	spend1 := makeSpend(coinbaseTxid, 0, a, b2, BlockReward(1)-100)

	blk := nextBlock(t, chain, a, 600, []Transaction{coinbase, spend1})

	if _, err := ValidateAndApplyBlock(chain, blk, UTXOSet{}, blk.Header.Timestamp+1); CodeOf(err) != ErrImmatureCoinbase {
		t.Fatalf("expected ImmatureCoinbase for spending the block's own coinbase output, got %v", err)
	}
}

func TestValidateAndApplyBlockIntraBlockSpendChain(t *testing.T) {
	// A transaction in the same block spends an output created by an
	// earlier, already-folded NON-coinbase transaction in that same block
	// (spec.md §4.7's intra-block fold semantics).
	from := newTestKey(t)
	mid := newTestKey(t)
	to := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}

	funding := Transaction{Outputs: []TxOutput{{Value: 5000, PubkeyHash: from.hash}}}
	fundingTxid := Txid(&funding)
	seeded := UTXOSet{
		TxOutPoint{Txid: fundingTxid, Index: 0}: UTXO{Value: 5000, PubkeyHash: from.hash, Height: 0},
	}

	spend1 := makeSpend(fundingTxid, 0, from, mid, 4000)
	spend1Txid := Txid(&spend1)
	spend2 := makeSpend(spend1Txid, 0, mid, to, 3000)

	coinbase := makeCoinbase(BlockReward(1), from)
	blk := nextBlock(t, chain, from, 600, []Transaction{coinbase, spend1, spend2})

	utxo, err := ValidateAndApplyBlock(chain, blk, seeded, blk.Header.Timestamp+1)
	if err != nil {
		t.Fatalf("expected the intra-block spend chain to validate: %v", err)
	}
	if _, ok := utxo[TxOutPoint{Txid: spend1Txid, Index: 0}]; ok {
		t.Fatalf("spend1's output must have been consumed by spend2")
	}
	if _, ok := utxo[TxOutPoint{Txid: Txid(&spend2), Index: 0}]; !ok {
		t.Fatalf("spend2's output must be present in the resulting UTXO set")
	}
}

func TestValidateAndApplyBlockIntraBlockDoubleSpend(t *testing.T) {
	// Scenario 5 (spec.md §8): two transactions in one block both spend
	// outpoint (T,0) — the second must be rejected with DoubleSpend.
	from := newTestKey(t)
	to1 := newTestKey(t)
	to2 := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}

	funding := Transaction{
		Outputs: []TxOutput{{Value: 5000, PubkeyHash: from.hash}},
	}
	fundingTxid := Txid(&funding)

	coinbase := makeCoinbase(BlockReward(1), from)
	spendA := makeSpend(fundingTxid, 0, from, to1, 1000)
	spendB := makeSpend(fundingTxid, 0, from, to2, 2000)

	// Seed a UTXO set that already contains funding's output (simulating it
	// confirmed in an earlier, already-applied block).
	seeded := UTXOSet{
		TxOutPoint{Txid: fundingTxid, Index: 0}: UTXO{Value: 5000, PubkeyHash: from.hash, Height: 0},
	}

	blk := nextBlock(t, chain, from, 600, []Transaction{coinbase, spendA, spendB})

	if _, err := ValidateAndApplyBlock(chain, blk, seeded, blk.Header.Timestamp+1); CodeOf(err) != ErrDoubleSpend {
		// spendB's input was already spent by spendA earlier in the same
		// block, which the block-level spent set reports as a double spend.
		t.Fatalf("expected DoubleSpend once spendA has consumed the shared outpoint, got %v", err)
	}
}

func TestValidateAndApplyBlockRejectsOverpaidCoinbase(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	// Overpaying the coinbase is rejected under both rulesets: v5 requires
	// exact equality to reward+fees, and v4's relaxed inequality check still
	// forbids exceeding it (spec.md §4.6 rule 7).
	height := uint64(len(chain))
	cb := Transaction{Outputs: []TxOutput{{Value: BlockReward(height) + 1, PubkeyHash: key.hash}}}
	b := nextBlock(t, chain, key, 600, []Transaction{cb})

	if _, err := ValidateAndApplyBlock(chain, b, UTXOSet{}, b.Header.Timestamp+1); CodeOf(err) != ErrBadCoinbase {
		t.Fatalf("expected BadCoinbase for overpaying coinbase, got %v", err)
	}
}

func TestValidateAndApplyBlockDoesNotMutateInputUTXOSet(t *testing.T) {
	key := newTestKey(t)
	genesis := Genesis()
	chain := []Block{*genesis}
	b := nextBlock(t, chain, key, 600, nil)

	before := UTXOSet{}
	if _, err := ValidateAndApplyBlock(chain, b, before, b.Header.Timestamp+1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("ValidateAndApplyBlock must not mutate its input UTXO set, got %d entries", len(before))
	}
}
