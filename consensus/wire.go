package consensus

// SerializeHeader encodes a BlockHeader into the byte-exact layout that
// both BlockHash and proof-of-work verification hash over (spec.md §4.1):
//
//	height (u64 LE) || timestamp (i64 LE) || write_bytes(prev_hash) ||
//	nonce (u64 LE) || target (raw 32 bytes) || write_bytes(merkle_root)
//
// Target is NOT length-prefixed; every other byte field is. Any deviation
// here is a hard fork — this function has exactly one implementation and
// no variants.
func SerializeHeader(h BlockHeader) []byte {
	out := make([]byte, 0, 8+8+4+32+8+32+4+32)
	out = appendU64LE(out, h.Height)
	out = appendI64LE(out, h.Timestamp)
	out = appendBytes(out, h.PrevHash[:])
	out = appendU64LE(out, h.Nonce)
	out = append(out, h.Target[:]...)
	out = appendBytes(out, h.MerkleRoot[:])
	return out
}

// BlockHash computes the cached block hash: DoubleSHA256(SerializeHeader(h)).
func BlockHash(h BlockHeader) [32]byte {
	return DoubleSHA256(SerializeHeader(h))
}

// DeserializeHeader is the inverse of SerializeHeader: it reads a header
// starting at offset 0 of b and returns the byte count consumed. Storage
// and replay collaborators use this to round-trip a header through disk
// without ever re-deriving its hash from anything but these same bytes.
func DeserializeHeader(b []byte) (BlockHeader, int, error) {
	var h BlockHeader
	off := 0
	var err error
	if h.Height, off, err = readU64LE(b, off); err != nil {
		return h, 0, err
	}
	if h.Timestamp, off, err = readI64LE(b, off); err != nil {
		return h, 0, err
	}
	if h.PrevHash, off, err = readFixed32Prefixed(b, off); err != nil {
		return h, 0, err
	}
	if h.Nonce, off, err = readU64LE(b, off); err != nil {
		return h, 0, err
	}
	if h.Target, off, err = readFixed32(b, off); err != nil {
		return h, 0, err
	}
	if h.MerkleRoot, off, err = readFixed32Prefixed(b, off); err != nil {
		return h, 0, err
	}
	return h, off, nil
}

// readFixed32Prefixed reads a write_bytes(...)-encoded field that is
// expected to be exactly 32 bytes (prev_hash, merkle_root).
func readFixed32Prefixed(b []byte, off int) ([32]byte, int, error) {
	var out [32]byte
	raw, next, err := readBytes(b, off)
	if err != nil {
		return out, off, err
	}
	if len(raw) != 32 {
		return out, off, rejectf(ErrMalformedBytes, "expected 32-byte field, got %d bytes", len(raw))
	}
	copy(out[:], raw)
	return out, next, nil
}

// SerializeForTxid encodes a transaction EXCLUDING each input's pubkey,
// signature, and address_index (spec.md §4.1). This is the txid preimage:
// it is what UTXO keys, Merkle leaves, and block commitments reference,
// and it is invariant under re-signing.
func SerializeForTxid(tx *Transaction) []byte {
	out := make([]byte, 0, 4+len(tx.Inputs)*36+4+len(tx.Outputs)*40)
	out = appendU32LE(out, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = appendBytes(out, in.Txid[:])
		out = appendU32LE(out, in.Index)
	}
	out = appendU32LE(out, uint32(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendU64LE(out, o.Value)
		out = appendBytes(out, o.PubkeyHash)
	}
	return out
}

// Txid is DoubleSHA256(SerializeForTxid(tx)).
func Txid(tx *Transaction) [32]byte {
	return DoubleSHA256(SerializeForTxid(tx))
}

// SerializeForSighash encodes a transaction INCLUDING the full input
// context (pubkey, signature, address_index) for every input (spec.md
// §4.1). This is the preimage signed and verified over — malleating a
// signature changes the sighash but never the txid.
func SerializeForSighash(tx *Transaction) []byte {
	out := make([]byte, 0, 4+len(tx.Inputs)*96+4+len(tx.Outputs)*40)
	out = appendU32LE(out, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = appendBytes(out, in.Txid[:])
		out = appendU32LE(out, in.Index)
		out = appendBytes(out, in.Pubkey)
		out = appendBytes(out, in.Signature)
		out = appendU32LE(out, in.AddressIndex)
	}
	out = appendU32LE(out, uint32(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendU64LE(out, o.Value)
		out = appendBytes(out, o.PubkeyHash)
	}
	return out
}

// Sighash is DoubleSHA256(SerializeForSighash(tx)).
func Sighash(tx *Transaction) [32]byte {
	return DoubleSHA256(SerializeForSighash(tx))
}

// DeserializeTransaction is the inverse of SerializeForSighash: the full,
// storage-fidelity transaction encoding (every input's pubkey, signature,
// and address_index included). This is what node/store persists and
// replays — never SerializeForTxid, which is lossy by design.
func DeserializeTransaction(b []byte) (*Transaction, int, error) {
	tx := &Transaction{}
	off := 0

	inCount, off2, err := readU32LE(b, off)
	if err != nil {
		return nil, 0, err
	}
	off = off2
	tx.Inputs = make([]TxInput, 0, inCount)
	for i := uint32(0); i < inCount; i++ {
		var in TxInput
		if in.Txid, off, err = readFixed32Prefixed(b, off); err != nil {
			return nil, 0, err
		}
		if in.Index, off, err = readU32LE(b, off); err != nil {
			return nil, 0, err
		}
		if in.Pubkey, off, err = readBytes(b, off); err != nil {
			return nil, 0, err
		}
		if in.Signature, off, err = readBytes(b, off); err != nil {
			return nil, 0, err
		}
		if in.AddressIndex, off, err = readU32LE(b, off); err != nil {
			return nil, 0, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}

	outCount, off3, err := readU32LE(b, off)
	if err != nil {
		return nil, 0, err
	}
	off = off3
	tx.Outputs = make([]TxOutput, 0, outCount)
	for i := uint32(0); i < outCount; i++ {
		var out TxOutput
		if out.Value, off, err = readU64LE(b, off); err != nil {
			return nil, 0, err
		}
		if out.PubkeyHash, off, err = readBytes(b, off); err != nil {
			return nil, 0, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	return tx, off, nil
}
