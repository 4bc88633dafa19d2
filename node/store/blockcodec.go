package store

import (
	"encoding/binary"
	"fmt"

	"rubin.dev/node/consensus"
)

// EncodeBlock serializes a full block for disk storage: the header in its
// consensus wire form, followed by each transaction in its full-fidelity
// (sighash-preimage) form. This is a storage concern, not a consensus one —
// consensus.SerializeForTxid is deliberately lossy and cannot round-trip a
// transaction back, so the store keeps its own full encoding.
func EncodeBlock(b *consensus.Block) []byte {
	header := consensus.SerializeHeader(b.Header)
	out := make([]byte, 0, len(header)+4+len(b.Transactions)*64)
	out = append(out, header...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.Transactions)))
	out = append(out, countBuf[:]...)

	for i := range b.Transactions {
		txBytes := consensus.SerializeForSighash(&b.Transactions[i])
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(txBytes)))
		out = append(out, lenBuf[:]...)
		out = append(out, txBytes...)
	}
	return out
}

// DecodeBlock is the inverse of EncodeBlock.
func DecodeBlock(b []byte) (*consensus.Block, error) {
	header, off, err := consensus.DeserializeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if off+4 > len(b) {
		return nil, fmt.Errorf("decode block: truncated tx count")
	}
	txCount := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	txs := make([]consensus.Transaction, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		if off+4 > len(b) {
			return nil, fmt.Errorf("decode block: truncated tx length at index %d", i)
		}
		txLen := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		if off+int(txLen) > len(b) {
			return nil, fmt.Errorf("decode block: truncated tx body at index %d", i)
		}
		tx, consumed, err := consensus.DeserializeTransaction(b[off : off+int(txLen)])
		if err != nil {
			return nil, fmt.Errorf("decode tx %d: %w", i, err)
		}
		if consumed != int(txLen) {
			return nil, fmt.Errorf("decode block: tx %d has trailing bytes", i)
		}
		off += int(txLen)
		txs = append(txs, *tx)
	}
	if off != len(b) {
		return nil, fmt.Errorf("decode block: trailing bytes")
	}

	block := &consensus.Block{Header: header, Transactions: txs}
	block.Hash()
	return block, nil
}
