package consensus

// BlockHeader is the fixed-order, consensus-critical header (spec.md §3).
// Field order here is documentation only — SerializeHeader (wire.go) is
// the single source of truth for the byte layout.
type BlockHeader struct {
	Height     uint64
	Timestamp  int64
	PrevHash   [32]byte
	Nonce      uint64
	Target     [32]byte
	MerkleRoot [32]byte
}

// Block is a header plus its ordered, non-empty transaction list, with a
// cached header hash. The cache is filled by the first call to Hash() and
// is never recomputed implicitly — callers that mutate a Block's header
// after that must build a new Block value to get a fresh hash.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
	hash         [32]byte
	hashSet      bool
}

// Hash returns the cached block hash, computing and caching it on first use.
func (b *Block) Hash() [32]byte {
	if !b.hashSet {
		b.hash = BlockHash(b.Header)
		b.hashSet = true
	}
	return b.hash
}

// TxOutPoint identifies a prior transaction output: the outpoint key used
// by the UTXO map (spec.md §3's "Outpoint").
type TxOutPoint struct {
	Txid  [32]byte
	Index uint32
}

// TxInput references a prior output plus the authorization material needed
// to spend it. Pubkey/Signature/AddressIndex are excluded from the txid
// hash and included in the sighash (spec.md §3/§4.1) — that split is the
// defining invariant of this data model.
type TxInput struct {
	Txid         [32]byte
	Index        uint32
	Pubkey       []byte
	Signature    []byte
	AddressIndex uint32
}

// TxOutput is a value locked to a pubkey hash.
type TxOutput struct {
	Value      uint64
	PubkeyHash []byte
}

// Transaction is an ordered input/output list. A transaction with zero
// inputs is a coinbase.
type Transaction struct {
	Inputs  []TxInput
	Outputs []TxOutput
}

// IsCoinbase reports whether tx has the coinbase shape (spec.md §3: "zero
// inputs").
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// UTXO is the value carried at an outpoint, plus the metadata needed for
// coinbase-maturity checks.
type UTXO struct {
	Value      uint64
	PubkeyHash []byte
	Height     uint64
	IsCoinbase bool
}

// UTXOSet is the canonical in-memory representation of unspent outputs,
// keyed by outpoint. Nothing about iteration order over this map is ever
// consensus-relevant (spec.md §4.7's invariant).
type UTXOSet map[TxOutPoint]UTXO

// Clone returns a shallow copy of the set (PubkeyHash slices are shared —
// they are never mutated in place once a UTXO is created).
func (u UTXOSet) Clone() UTXOSet {
	out := make(UTXOSet, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
