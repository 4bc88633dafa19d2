package consensus

import (
	"crypto/sha256"
	"encoding/binary"
)

// DoubleSHA256 is the sole hash primitive used by both hashing regimes
// (txid and sighash) and by block hashing (spec.md §3). Grounded on the
// teacher's hash.go, which wraps a single hash primitive the same way —
// here SHA-256 composed twice rather than SHA3-256, per spec.md §3.
func DoubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// appendU32LE appends v as 4 little-endian bytes.
func appendU32LE(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// appendU64LE appends v as 8 little-endian bytes.
func appendU64LE(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// appendI64LE appends v as 8 little-endian bytes (two's complement).
func appendI64LE(dst []byte, v int64) []byte {
	return appendU64LE(dst, uint64(v))
}

// appendBytes appends write_bytes(b) per spec.md §4.1: a u32 LE length
// prefix followed by the raw bytes.
func appendBytes(dst []byte, b []byte) []byte {
	dst = appendU32LE(dst, uint32(len(b)))
	return append(dst, b...)
}

// readU32LE, readU64LE, readI64LE, and readBytes are the inverse of the
// append* helpers above: each reads a value starting at off and returns
// the offset immediately past it. They underlie DeserializeHeader and
// DeserializeTransaction (wire.go), which round-trip storage and transport
// collaborators back into consensus types (spec.md §4.1 is defined as a
// byte-exact layout in both directions, not just the hash direction).
func readU32LE(b []byte, off int) (uint32, int, error) {
	if off+4 > len(b) {
		return 0, off, rejectf(ErrMalformedBytes, "truncated u32 at offset %d", off)
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), off + 4, nil
}

func readU64LE(b []byte, off int) (uint64, int, error) {
	if off+8 > len(b) {
		return 0, off, rejectf(ErrMalformedBytes, "truncated u64 at offset %d", off)
	}
	return binary.LittleEndian.Uint64(b[off : off+8]), off + 8, nil
}

func readI64LE(b []byte, off int) (int64, int, error) {
	v, next, err := readU64LE(b, off)
	return int64(v), next, err
}

func readBytes(b []byte, off int) ([]byte, int, error) {
	n, next, err := readU32LE(b, off)
	if err != nil {
		return nil, off, err
	}
	end := next + int(n)
	if end < next || end > len(b) {
		return nil, off, rejectf(ErrMalformedBytes, "truncated byte field at offset %d", off)
	}
	out := append([]byte(nil), b[next:end]...)
	return out, end, nil
}

func readFixed32(b []byte, off int) ([32]byte, int, error) {
	var out [32]byte
	if off+32 > len(b) {
		return out, off, rejectf(ErrMalformedBytes, "truncated 32-byte field at offset %d", off)
	}
	copy(out[:], b[off:off+32])
	return out, off + 32, nil
}
