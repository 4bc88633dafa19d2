package consensus

import "sync"

// genesisTimestamp and genesisNonce are the fixed constants baked into the
// canonical genesis block (spec.md §6: "a single, hard-coded genesis
// block"). genesisNonce is the value an offline search found satisfying
// VerifyPoW against MaxTarget for this exact header; it is never
// recomputed at runtime.
const (
	genesisTimestamp int64  = 1700000000
	genesisNonce     uint64 = 100
	genesisMessage   string = "genesis: height 0, fixed by consensus"
)

var (
	genesisOnce  sync.Once
	genesisBlock Block
)

// Genesis returns the canonical genesis block (spec.md §6): height 0,
// zero prev_hash, MaxTarget difficulty, and a single coinbase-shaped
// transaction carrying a zero-value, fixed-text output rather than a real
// subsidy. It is computed once and cached; callers must not mutate the
// returned Block.
//
// Grounded on the teacher's node/store/init_genesis.go, which likewise
// constructs a fixed genesis block and verifies a freshly opened database
// either holds it at height 0 or is empty.
func Genesis() *Block {
	genesisOnce.Do(func() {
		coinbase := Transaction{
			Inputs: nil,
			Outputs: []TxOutput{
				{Value: 0, PubkeyHash: []byte(genesisMessage)},
			},
		}
		header := BlockHeader{
			Height:     0,
			Timestamp:  genesisTimestamp,
			PrevHash:   [32]byte{},
			Nonce:      genesisNonce,
			Target:     MaxTarget,
			MerkleRoot: Txid(&coinbase),
		}
		genesisBlock = Block{
			Header:       header,
			Transactions: []Transaction{coinbase},
		}
		genesisBlock.Hash()
	})
	return &genesisBlock
}

// VerifyGenesis checks that candidate's header hash equals Genesis()'s —
// the startup check a store performs before trusting its on-disk height-0
// block (spec.md §6). The header commits to the coinbase txid through its
// merkle root; candidate's transaction list itself is not re-hashed.
func VerifyGenesis(candidate *Block) error {
	want := Genesis()
	if candidate.Hash() != want.Hash() {
		return rejectf(ErrBadLinkage, "stored genesis does not match canonical genesis")
	}
	return nil
}
