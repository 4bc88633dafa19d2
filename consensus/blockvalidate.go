package consensus

// ValidateAndApplyBlock checks candidate block b against every rule in
// spec.md §4.6, given the current chain (b must be at height len(chain)) and
// its already-applied UTXO set. On success it returns the UTXO set that
// results from folding b's transactions forward; utxo itself is never
// mutated (spec.md §4.7: the engine commits only after full validation
// succeeds — grounded on the teacher's ApplyBlock, which clones a working
// UTXO map and only swaps it in on success).
func ValidateAndApplyBlock(chain []Block, b *Block, utxo UTXOSet, now int64) (UTXOSet, error) {
	height := uint64(len(chain))

	// 1. Height.
	if len(chain) == 0 {
		if b.Header.Height != 0 {
			return nil, rejectf(ErrBadHeight, "genesis must be height 0, got %d", b.Header.Height)
		}
	} else if b.Header.Height != height {
		return nil, rejectf(ErrBadHeight, "expected height %d, got %d", height, b.Header.Height)
	}

	// 2. Linkage.
	if len(chain) > 0 {
		tip := chain[len(chain)-1]
		if b.Header.PrevHash != tip.Hash() {
			return nil, rejectf(ErrBadLinkage, "prev_hash does not match tip")
		}
	} else if b.Header.PrevHash != ([32]byte{}) {
		return nil, rejectf(ErrBadLinkage, "genesis prev_hash must be zero")
	}

	// 3. Timestamp.
	if err := CheckTimestamp(chain, b.Header.Timestamp, now); err != nil {
		return nil, err
	}

	// 4. Difficulty.
	ruleset := RulesetForHeight(b.Header.Height)
	expectedTarget, err := NextTarget(chain, b.Header.Height, ruleset)
	if err != nil {
		return nil, err
	}
	if b.Header.Target != expectedTarget {
		return nil, rejectf(ErrBadDifficulty, "target does not match expected retarget")
	}

	// 5. PoW.
	if err := VerifyPoW(b); err != nil {
		return nil, err
	}

	// 6. Merkle.
	if len(b.Transactions) == 0 {
		return nil, rejectf(ErrBadMerkle, "block has no transactions")
	}
	root := MerkleRootOfBlock(b.Transactions)
	if root != b.Header.MerkleRoot {
		return nil, rejectf(ErrBadMerkle, "merkle root mismatch")
	}

	// 7. Coinbase shape.
	coinbase := &b.Transactions[0]
	if !coinbase.IsCoinbase() {
		return nil, rejectf(ErrBadCoinbase, "first transaction must be a coinbase")
	}
	if len(coinbase.Outputs) == 0 {
		return nil, rejectf(ErrBadCoinbase, "coinbase must have at least one output")
	}

	// 8. Transactions, folded in strict block order (spec.md §4.7: "for
	// each transaction at index t ... in order" — t=0, the coinbase,
	// first). Folding the coinbase before the rest of the loop is what
	// makes its outputs visible (though immature) to later transactions
	// in the same block, matching the index-order fold rebuild_utxos uses.
	working := utxo.Clone()
	foldTx(working, coinbase, b.Header.Height, true)

	var totalFees uint64
	spent := make(map[TxOutPoint]struct{})
	for i := 1; i < len(b.Transactions); i++ {
		tx := &b.Transactions[i]
		if tx.IsCoinbase() {
			return nil, rejectf(ErrBadCoinbase, "only transaction 0 may be a coinbase")
		}
		for _, in := range tx.Inputs {
			key := TxOutPoint{Txid: in.Txid, Index: in.Index}
			if _, dup := spent[key]; dup {
				return nil, rejectf(ErrDoubleSpend, "outpoint %x:%d already spent earlier in this block", key.Txid, key.Index)
			}
		}
		if err := ValidateTransaction(tx, working, b.Header.Height); err != nil {
			return nil, err
		}
		for _, in := range tx.Inputs {
			spent[TxOutPoint{Txid: in.Txid, Index: in.Index}] = struct{}{}
		}
		totalFees = addSaturating(totalFees, txFee(tx, working))
		foldTx(working, tx, b.Header.Height, false)
	}

	var coinbaseSum uint64
	for _, out := range coinbase.Outputs {
		coinbaseSum = addSaturating(coinbaseSum, out.Value)
	}
	maxReward := addSaturating(BlockReward(b.Header.Height), totalFees)
	switch ruleset {
	case RulesetV5:
		if coinbaseSum != maxReward {
			return nil, rejectf(ErrBadCoinbase, "coinbase value %d != reward+fees %d", coinbaseSum, maxReward)
		}
	default: // RulesetV4: relaxed, inequality only.
		if coinbaseSum > maxReward {
			return nil, rejectf(ErrBadCoinbase, "coinbase value %d exceeds reward+fees %d", coinbaseSum, maxReward)
		}
	}

	return working, nil
}
