// Package store persists the consensus chain state to disk: headers,
// blocks, the per-block index, the UTXO set, and undo records, behind a
// bbolt-backed key/value store. Grounded on the teacher's node/store
// package, which uses the same bucket layout and crash-safe manifest
// commit for its own (covenant-based) chain state.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChainDir returns the on-disk directory for a given chain under datadir:
//
//	datadir/chains/<chain_id_hex>/
func ChainDir(datadir string, chainIDHex string) string {
	return filepath.Join(datadir, "chains", chainIDHex)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
