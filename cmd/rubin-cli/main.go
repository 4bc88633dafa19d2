// Command rubin-cli validates a single block or chain file and prints a
// verdict. It is a read-only diagnostic: it never touches a store, only
// the consensus package directly. It checks that the chain roots at the
// canonical genesis, then runs consensus.ValidateAndApplyBlock on every
// block in order (genesis included) against the wall clock.
//
// Usage:
//
//	rubin-cli --chain=chain.json
//
// chain.json is a JSON array of hex-encoded, store.EncodeBlock-framed
// blocks, in height order starting at genesis.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"rubin.dev/node/consensus"
	"rubin.dev/node/node/store"
)

func main() {
	chainPath := flag.String("chain", "", "path to a JSON array of hex-encoded blocks")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	logger := newConsoleLogger(*logLevel)

	if *chainPath == "" {
		fmt.Fprintln(os.Stderr, "usage: rubin-cli --chain=chain.json")
		os.Exit(2)
	}

	ok, err := validateChainFile(*chainPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("verdict: error")
		os.Exit(1)
	}
	if !ok {
		logger.Warn().Msg("verdict: rejected")
		os.Exit(1)
	}
	logger.Info().Msg("verdict: accepted")
}

func validateChainFile(path string, logger zerolog.Logger) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read chain file: %w", err)
	}
	var hexBlocks []string
	if err := json.Unmarshal(raw, &hexBlocks); err != nil {
		return false, fmt.Errorf("parse chain file: %w", err)
	}
	if len(hexBlocks) == 0 {
		return false, fmt.Errorf("chain file has no blocks")
	}

	chain := make([]consensus.Block, 0, len(hexBlocks))
	for i, h := range hexBlocks {
		blockBytes, err := hex.DecodeString(h)
		if err != nil {
			return false, fmt.Errorf("block %d: decode hex: %w", i, err)
		}
		block, err := store.DecodeBlock(blockBytes)
		if err != nil {
			return false, fmt.Errorf("block %d: decode: %w", i, err)
		}
		chain = append(chain, *block)
	}

	genesis := consensus.Genesis()
	if chain[0].Hash() != genesis.Hash() {
		logger.Warn().Msg("chain does not root at canonical genesis")
		return false, nil
	}

	utxo := make(consensus.UTXOSet)
	for i := range chain {
		block := &chain[i]
		logger.Debug().Uint64("height", block.Header.Height).Msg("validating block")
		result, err := consensus.ValidateAndApplyBlock(chain[:i], block, utxo, time.Now().Unix())
		if err != nil {
			logger.Warn().
				Uint64("height", block.Header.Height).
				Str("code", string(consensus.CodeOf(err))).
				Err(err).
				Msg("block rejected")
			return false, nil
		}
		utxo = result
	}

	logger.Info().
		Int("blocks", len(chain)).
		Int("utxo_count", len(utxo)).
		Msg("chain fully validated")
	return true, nil
}

func newConsoleLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
