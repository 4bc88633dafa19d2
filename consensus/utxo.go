package consensus

// foldTx applies a single already-validated transaction's spends and
// creations to utxo in place (spec.md §4.7): inputs are removed, outputs
// are inserted keyed by (txid, output_index). isCoinbase controls both
// whether inputs are removed (a coinbase has none) and the UTXO.IsCoinbase
// flag stamped on its outputs.
//
// This is the single fold step shared by ValidateAndApplyBlock's
// transaction loop, RebuildUTXOSet, and ApplyBlockToUTXOSet — the
// mechanism by which "rebuild equals incremental apply" (spec.md §8) holds
// by construction rather than by the two code paths happening to agree.
func foldTx(utxo UTXOSet, tx *Transaction, height uint64, isCoinbase bool) {
	if !isCoinbase {
		for _, in := range tx.Inputs {
			delete(utxo, TxOutPoint{Txid: in.Txid, Index: in.Index})
		}
	}
	txid := Txid(tx)
	for k, out := range tx.Outputs {
		utxo[TxOutPoint{Txid: txid, Index: uint32(k)}] = UTXO{
			Value:      out.Value,
			PubkeyHash: out.PubkeyHash,
			Height:     height,
			IsCoinbase: isCoinbase,
		}
	}
}

// foldBlock applies every transaction of an already-validated block to
// utxo in place, in block order (spec.md §4.7).
func foldBlock(utxo UTXOSet, b *Block) {
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		foldTx(utxo, tx, b.Header.Height, i == 0 && tx.IsCoinbase())
	}
}

// RebuildUTXOSet folds an entire chain forward from an empty set (spec.md
// §4.7: "Rebuild from scratch"). It trusts that chain has already been
// validated block-by-block; it performs no consensus checks itself.
func RebuildUTXOSet(chain []Block) UTXOSet {
	utxo := make(UTXOSet)
	for i := range chain {
		foldBlock(utxo, &chain[i])
	}
	return utxo
}

// ApplyBlockToUTXOSet folds a single already-validated block into utxo in
// place and returns it (spec.md §4.7: "Incremental apply"). Callers that
// need an unmodified copy of utxo on failure should clone before calling.
func ApplyBlockToUTXOSet(utxo UTXOSet, b *Block) UTXOSet {
	foldBlock(utxo, b)
	return utxo
}
