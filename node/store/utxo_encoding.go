package store

import (
	"encoding/binary"
	"fmt"

	"rubin.dev/node/consensus"
)

// encodeOutpointKey is the bbolt key for a UTXO: txid (32 bytes) followed
// by the output index (4 bytes LE) — 36 bytes total, fixed width so bbolt's
// byte-ordered keys sort by txid first (consensus never depends on that
// order, but it keeps iteration deterministic for debugging tools).
func encodeOutpointKey(p consensus.TxOutPoint) []byte {
	out := make([]byte, 36)
	copy(out[:32], p.Txid[:])
	binary.LittleEndian.PutUint32(out[32:], p.Index)
	return out
}

func decodeOutpointKey(b []byte) (consensus.TxOutPoint, error) {
	var p consensus.TxOutPoint
	if len(b) != 36 {
		return p, fmt.Errorf("outpoint key: want 36 bytes, got %d", len(b))
	}
	copy(p.Txid[:], b[:32])
	p.Index = binary.LittleEndian.Uint32(b[32:])
	return p, nil
}

// encodeUtxoEntry lays out a UTXO value: value u64 | height u64 |
// is_coinbase u8 | pubkey_hash_len u32 | pubkey_hash bytes.
func encodeUtxoEntry(u consensus.UTXO) ([]byte, error) {
	if len(u.PubkeyHash) > 0xffffffff {
		return nil, fmt.Errorf("utxo entry: pubkey_hash too large")
	}
	out := make([]byte, 0, 8+8+1+4+len(u.PubkeyHash))
	var buf8 [8]byte
	binary.LittleEndian.PutUint64(buf8[:], u.Value)
	out = append(out, buf8[:]...)
	binary.LittleEndian.PutUint64(buf8[:], u.Height)
	out = append(out, buf8[:]...)
	if u.IsCoinbase {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	var buf4 [4]byte
	binary.LittleEndian.PutUint32(buf4[:], uint32(len(u.PubkeyHash)))
	out = append(out, buf4[:]...)
	out = append(out, u.PubkeyHash...)
	return out, nil
}

func decodeUtxoEntry(b []byte) (consensus.UTXO, error) {
	var u consensus.UTXO
	if len(b) < 8+8+1+4 {
		return u, fmt.Errorf("utxo entry: truncated")
	}
	off := 0
	u.Value = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	u.Height = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	u.IsCoinbase = b[off] != 0
	off++
	n := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	if off+int(n) != len(b) {
		return u, fmt.Errorf("utxo entry: bad pubkey_hash length")
	}
	u.PubkeyHash = append([]byte(nil), b[off:off+int(n)]...)
	return u, nil
}
