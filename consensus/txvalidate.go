package consensus

import (
	"bytes"

	"rubin.dev/node/crypto"
)

// addSaturating adds b to a, clamping at math.MaxUint64 instead of
// wrapping (spec.md §4.5: "saturating add"). Saturation, not an error
// return, is the mechanism by which an overflowing value sum fails the
// conservation check downstream — the sum itself never panics or wraps.
func addSaturating(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

// matchesPubkeyHash compares a parsed pubkey against a locking hash that
// may be either the 20-byte short form or the 32-byte full form (spec.md
// §3). The comparison picks its hash width from len(want).
func matchesPubkeyHash(pubkey []byte, want []byte) bool {
	switch len(want) {
	case 20:
		return bytes.Equal(crypto.PubkeyHash(pubkey), want)
	case 32:
		got := crypto.PubkeyHash32(pubkey)
		return bytes.Equal(got[:], want)
	default:
		return false
	}
}

// ValidateTransaction applies spec.md §4.5's ordered rule set to tx
// against UTXO set utxo, at confirmation height height. It never mutates
// utxo. A coinbase (zero inputs) is valid here unconditionally — value
// rules for coinbases are enforced at block level (spec.md §4.6 rule 7).
func ValidateTransaction(tx *Transaction, utxo UTXOSet, height uint64) error {
	if tx.IsCoinbase() {
		return nil
	}

	sighash := Sighash(tx)

	var inputSum uint64
	var outputSum uint64
	seen := make(map[TxOutPoint]struct{}, len(tx.Inputs))

	for _, in := range tx.Inputs {
		key := TxOutPoint{Txid: in.Txid, Index: in.Index}
		if _, dup := seen[key]; dup {
			return rejectf(ErrDoubleSpend, "outpoint %x:%d spent twice in same transaction", key.Txid, key.Index)
		}
		seen[key] = struct{}{}

		entry, ok := utxo[key]
		if !ok {
			return rejectf(ErrMissingUTXO, "outpoint %x:%d not in UTXO set", key.Txid, key.Index)
		}

		if entry.IsCoinbase && height < entry.Height+CoinbaseMaturity {
			return rejectf(ErrImmatureCoinbase, "coinbase output created at %d not mature at %d", entry.Height, height)
		}

		pubkey, err := crypto.ParsePubkey(in.Pubkey)
		if err != nil {
			return rejectf(ErrBadPubkey, "invalid secp256k1 public key: %v", err)
		}

		if !matchesPubkeyHash(in.Pubkey, entry.PubkeyHash) {
			return rejectf(ErrBadPubkeyHash, "pubkey does not hash to locked output")
		}

		if !crypto.Verify(pubkey, sighash, in.Signature) {
			return rejectf(ErrBadSignature, "signature does not verify")
		}

		inputSum = addSaturating(inputSum, entry.Value)
	}

	for _, out := range tx.Outputs {
		outputSum = addSaturating(outputSum, out.Value)
	}

	if inputSum < outputSum {
		return rejectf(ErrInflation, "input sum %d less than output sum %d", inputSum, outputSum)
	}
	return nil
}

// txFee returns input_sum - output_sum (zero if outputs exceed inputs): the
// fee implied by applying tx against utxo (spec.md §4.5's "implicit fee").
// Callers must have already validated tx; txFee does not re-check
// conservation.
func txFee(tx *Transaction, utxo UTXOSet) uint64 {
	var inputSum, outputSum uint64
	for _, in := range tx.Inputs {
		entry := utxo[TxOutPoint{Txid: in.Txid, Index: in.Index}]
		inputSum = addSaturating(inputSum, entry.Value)
	}
	for _, out := range tx.Outputs {
		outputSum = addSaturating(outputSum, out.Value)
	}
	if inputSum < outputSum {
		return 0
	}
	return inputSum - outputSum
}
