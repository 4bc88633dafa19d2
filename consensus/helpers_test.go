package consensus

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"rubin.dev/node/crypto"
)

// testKey wraps a freshly generated keypair and its P2PKH-style locking
// hash, so test bodies can build spendable outputs/inputs without
// repeating key plumbing (mirrors the teacher's small local fixture
// helpers, e.g. mustBytes32Hex, rather than a heavyweight builder type).
type testKey struct {
	priv   *secp256k1.PrivateKey
	pubkey []byte
	hash   []byte
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()
	return testKey{priv: priv, pubkey: pub, hash: crypto.PubkeyHash(pub)}
}

// signInput fills in a TxInput's Pubkey/Signature against tx's current
// sighash. Callers must have already set every other field of tx (all
// inputs/outputs), since the sighash commits to all of them.
func signInput(tx *Transaction, idx int, key testKey) {
	sighash := Sighash(tx)
	tx.Inputs[idx].Pubkey = key.pubkey
	tx.Inputs[idx].Signature = signRaw(sighash, key)
}

// signRaw signs an already-computed digest with key, without touching
// any transaction field.
func signRaw(digest [32]byte, key testKey) []byte {
	return crypto.Sign(key.priv, digest)
}

// makeCoinbase builds a coinbase transaction paying value to key's
// pubkey hash.
func makeCoinbase(value uint64, key testKey) Transaction {
	return Transaction{
		Outputs: []TxOutput{{Value: value, PubkeyHash: key.hash}},
	}
}

// makeSpend builds and signs a single-input, single-output transaction
// spending (prevTxid, prevIndex) locked to fromKey, paying value to
// toKey's hash.
func makeSpend(prevTxid [32]byte, prevIndex uint32, fromKey testKey, toKey testKey, value uint64) Transaction {
	tx := Transaction{
		Inputs: []TxInput{{
			Txid:  prevTxid,
			Index: prevIndex,
		}},
		Outputs: []TxOutput{{Value: value, PubkeyHash: toKey.hash}},
	}
	signInput(&tx, 0, fromKey)
	return tx
}

// mineBlock finds a nonce satisfying VerifyPoW for header (target and
// merkle root must already be set), then returns the assembled block.
// Mining is not consensus (spec.md §4.4) — any search strategy is valid,
// and a linear nonce scan is the simplest one that terminates quickly
// against the generous test targets used throughout this package.
func mineBlock(t *testing.T, header BlockHeader, txs []Transaction) *Block {
	t.Helper()
	target := asU256BE(header.Target)
	for nonce := uint64(0); nonce < 10_000_000; nonce++ {
		header.Nonce = nonce
		h := BlockHash(header)
		if asU256BE(h).Cmp(target) <= 0 {
			b := &Block{Header: header, Transactions: txs}
			b.Hash()
			return b
		}
	}
	t.Fatalf("mineBlock: no nonce found under target %x", header.Target)
	return nil
}

// easyTarget is a target that is easy enough to mine in a handful of
// iterations within a test, but still exercises the real big-endian
// numeric comparison in VerifyPoW (as opposed to an all-0xff target,
// which would trivially accept any hash and never exercise the
// comparison at all).
var easyTarget = [32]byte{
	0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// buildChain mines a chain of n blocks on top of Genesis(), each with a
// single coinbase transaction paying rewardKey, spaced spacing seconds
// apart starting at genesis timestamp+spacing. Useful for difficulty and
// fork-choice tests that need a plausible, PoW-valid chain without
// exercising transaction validation.
func buildChain(t *testing.T, n int, rewardKey testKey, spacing int64) []Block {
	t.Helper()
	genesis := Genesis()
	chain := []Block{*genesis}
	ts := genesis.Header.Timestamp
	for i := 1; i <= n; i++ {
		ts += spacing
		coinbase := makeCoinbase(BlockReward(uint64(i)), rewardKey)
		ruleset := RulesetForHeight(uint64(i))
		target, err := NextTarget(chain, uint64(i), ruleset)
		if err != nil {
			t.Fatalf("NextTarget: %v", err)
		}
		header := BlockHeader{
			Height:     uint64(i),
			Timestamp:  ts,
			PrevHash:   chain[len(chain)-1].Hash(),
			Target:     target,
			MerkleRoot: MerkleRootOfBlock([]Transaction{coinbase}),
		}
		b := mineBlock(t, header, []Transaction{coinbase})
		chain = append(chain, *b)
	}
	return chain
}
