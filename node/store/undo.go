package store

import (
	"encoding/binary"
	"fmt"

	"rubin.dev/node/consensus"
)

// UndoSpent records a UTXO that foldTx deleted while applying a block, so a
// disconnect can restore it verbatim (spec.md §4.9's reorg primitive).
type UndoSpent struct {
	OutPoint      consensus.TxOutPoint
	RestoredEntry consensus.UTXO
}

// UndoRecord is everything needed to reverse one block's effect on the
// UTXO set: the entries its inputs deleted (to be restored) and the
// outpoints its outputs created (to be deleted).
type UndoRecord struct {
	Spent   []UndoSpent
	Created []consensus.TxOutPoint
}

func encodeUndoRecord(u UndoRecord) ([]byte, error) {
	out := make([]byte, 0, 4+len(u.Spent)*(36+4+64)+4+len(u.Created)*36)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(u.Spent)))
	out = append(out, tmp4[:]...)
	for _, s := range u.Spent {
		out = append(out, encodeOutpointKey(s.OutPoint)...)
		utxoBytes, err := encodeUtxoEntry(s.RestoredEntry)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(tmp4[:], uint32(len(utxoBytes)))
		out = append(out, tmp4[:]...)
		out = append(out, utxoBytes...)
	}

	binary.LittleEndian.PutUint32(tmp4[:], uint32(len(u.Created)))
	out = append(out, tmp4[:]...)
	for _, p := range u.Created {
		out = append(out, encodeOutpointKey(p)...)
	}
	return out, nil
}

func decodeUndoRecord(b []byte) (*UndoRecord, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("undo: truncated")
	}
	off := 0
	readU32 := func() (uint32, error) {
		if off+4 > len(b) {
			return 0, fmt.Errorf("undo: truncated u32")
		}
		v := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}

	spentN, err := readU32()
	if err != nil {
		return nil, err
	}
	spent := make([]UndoSpent, 0, spentN)
	for i := uint32(0); i < spentN; i++ {
		if off+36 > len(b) {
			return nil, fmt.Errorf("undo: truncated outpoint")
		}
		p, err := decodeOutpointKey(b[off : off+36])
		if err != nil {
			return nil, err
		}
		off += 36
		utxoLen, err := readU32()
		if err != nil {
			return nil, err
		}
		if off+int(utxoLen) > len(b) {
			return nil, fmt.Errorf("undo: truncated utxo bytes")
		}
		entry, err := decodeUtxoEntry(b[off : off+int(utxoLen)])
		if err != nil {
			return nil, err
		}
		off += int(utxoLen)
		spent = append(spent, UndoSpent{OutPoint: p, RestoredEntry: entry})
	}

	createdN, err := readU32()
	if err != nil {
		return nil, err
	}
	created := make([]consensus.TxOutPoint, 0, createdN)
	for i := uint32(0); i < createdN; i++ {
		if off+36 > len(b) {
			return nil, fmt.Errorf("undo: truncated created outpoint")
		}
		p, err := decodeOutpointKey(b[off : off+36])
		if err != nil {
			return nil, err
		}
		off += 36
		created = append(created, p)
	}
	if off != len(b) {
		return nil, fmt.Errorf("undo: trailing bytes")
	}
	return &UndoRecord{Spent: spent, Created: created}, nil
}

// RecordUndo computes the UndoRecord for applying block b against utxo,
// which must be the set AS IT STOOD BEFORE b was folded in (spec.md §4.9:
// disconnecting a block must restore exactly what it spent). Grounded on
// the teacher's undo.go, which captures the same before/after delta.
func RecordUndo(before consensus.UTXOSet, b *consensus.Block) UndoRecord {
	var rec UndoRecord
	for i := range b.Transactions {
		tx := &b.Transactions[i]
		isCoinbase := i == 0 && tx.IsCoinbase()
		if !isCoinbase {
			for _, in := range tx.Inputs {
				op := consensus.TxOutPoint{Txid: in.Txid, Index: in.Index}
				if entry, ok := before[op]; ok {
					rec.Spent = append(rec.Spent, UndoSpent{OutPoint: op, RestoredEntry: entry})
				}
			}
		}
		txid := consensus.Txid(tx)
		for k := range tx.Outputs {
			rec.Created = append(rec.Created, consensus.TxOutPoint{Txid: txid, Index: uint32(k)})
		}
	}
	return rec
}

// ApplyUndo reverses an UndoRecord against utxo in place: deletes every
// outpoint the block created, then restores every entry it spent.
func ApplyUndo(utxo consensus.UTXOSet, rec *UndoRecord) {
	for _, op := range rec.Created {
		delete(utxo, op)
	}
	for _, s := range rec.Spent {
		utxo[s.OutPoint] = s.RestoredEntry
	}
}
