// Package crypto provides the signature and address-hashing primitives
// the consensus core treats as opaque: ECDSA-over-secp256k1 verification
// (spec.md §6) and the pubkey_hash locking function (spec.md §4.5 rule 4e).
//
// Grounded on the decred secp256k1 stack used throughout the retrieval
// pack (Klingon-tech-klingnet's pkg/crypto/signature.go, arejula27-p2pool-go,
// EXCCoin-exccd) rather than the teacher's own wolfCrypt/ML-DSA provider,
// which targets post-quantum suites this spec's P2PKH-style model does not
// use.
package crypto

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ParsePubkey decodes a SEC-format public key: 33-byte compressed or
// 65-byte uncompressed (spec.md §6). It returns ErrBadPubkey-shaped errors
// via the caller, not here — this package does not know about consensus
// error codes, only about cryptographic validity.
func ParsePubkey(b []byte) (*secp256k1.PublicKey, error) {
	return secp256k1.ParsePubKey(b)
}

// PubkeyHash computes the locking hash for a SEC-encoded public key:
// DoubleSHA256 of the raw key bytes, truncated to the short (20-byte) P2PKH
// form used by spec.md §3's "20- or 32-byte hash". Callers that want the
// untruncated 32-byte form should use PubkeyHash32.
func PubkeyHash(pubkey []byte) []byte {
	full := PubkeyHash32(pubkey)
	return full[:20]
}

// PubkeyHash32 returns the full 32-byte DoubleSHA256 digest of pubkey,
// for outputs locked to the longer hash form spec.md §3 also allows.
func PubkeyHash32(pubkey []byte) [32]byte {
	first := sha256.Sum256(pubkey)
	return sha256.Sum256(first[:])
}

// Verify checks an ECDSA-over-secp256k1 signature of digest by pubkey.
// digest is the 32-byte sighash (spec.md §6); sig is DER-encoded.
func Verify(pubkey *secp256k1.PublicKey, digest [32]byte, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest[:], pubkey)
}

// Sign produces a deterministic (RFC 6979) ECDSA-over-secp256k1 signature
// of digest, DER-encoded. Used by tests and by out-of-scope wallet
// collaborators exercising this package; consensus validation never signs.
func Sign(priv *secp256k1.PrivateKey, digest [32]byte) []byte {
	sig := ecdsa.Sign(priv, digest[:])
	return sig.Serialize()
}
