package consensus

// MerkleRoot computes the deterministic Merkle root over an ordered list
// of txids (spec.md §4.2). An empty list roots to 32 zero bytes. While the
// working level has more than one element, an odd-length level duplicates
// its last element before pairwise hashing.
//
// This is the plain txid-Merkle form. spec.md §4.2/§9 note that the
// original source also carries a variant that mixes height and prev_hash
// into the leaf/pair hash; that variant is NOT implemented here — see
// DESIGN.md's Open Question entry.
func MerkleRoot(txids [][32]byte) [32]byte {
	if len(txids) == 0 {
		return [32]byte{}
	}

	level := make([][32]byte, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		pair := make([]byte, 64)
		for i := 0; i < len(level); i += 2 {
			copy(pair[:32], level[i][:])
			copy(pair[32:], level[i+1][:])
			next = append(next, DoubleSHA256(pair))
		}
		level = next
	}
	return level[0]
}

// MerkleRootOfBlock computes MerkleRoot over a block's transactions in
// order, hashing each to its txid first.
func MerkleRootOfBlock(txs []Transaction) [32]byte {
	ids := make([][32]byte, len(txs))
	for i := range txs {
		ids[i] = Txid(&txs[i])
	}
	return MerkleRoot(ids)
}
