package consensus

import "math/big"

// asU256BE interprets a 32-byte big-endian buffer as an unsigned 256-bit
// integer. Comparison by value (not lexical byte order) is what spec.md
// §4.4 requires; for big-endian fixed-width buffers the two coincide,
// which is exactly why the wire format is big-endian.
func asU256BE(b [32]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}

// VerifyPoW recomputes the block hash and checks it against the header's
// target (spec.md §4.4). It requires the cached hash to already equal the
// recomputed hash, matching spec.md's "h == block.hash" clause.
func VerifyPoW(b *Block) error {
	recomputed := BlockHash(b.Header)
	if b.Hash() != recomputed {
		return rejectf(ErrBadPoW, "cached hash does not match recomputed header hash")
	}
	if asU256BE(recomputed).Cmp(asU256BE(b.Header.Target)) > 0 {
		return rejectf(ErrBadPoW, "block hash exceeds target")
	}
	return nil
}
