// Command rubind replays a JSONL feed of blocks through the consensus
// engine, logging each outcome. It performs no networking or mining of
// its own — it is the minimal harness that exercises node.Engine the way
// a real daemon's block-import path would.
//
// Usage:
//
//	rubind --datadir=/path/to/data --chain=<chain_id_hex> --feed=blocks.jsonl
package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"rubin.dev/node/consensus"
	"rubin.dev/node/node"
	"rubin.dev/node/node/store"
)

// feedLine is one line of the JSONL block feed: a hex-encoded,
// store.EncodeBlock-framed block, optionally tagged as a reorg candidate
// chain rather than a single append.
type feedLine struct {
	BlockHex string   `json:"block_hex,omitempty"`
	ChainHex []string `json:"chain_hex,omitempty"`
}

func main() {
	datadir := flag.String("datadir", node.DefaultDataDir(), "data directory")
	chainID := flag.String("chain", "devnet", "chain identifier (hex or short name)")
	feedPath := flag.String("feed", "", "path to a JSONL block feed (defaults to stdin)")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	logger := newLogger(*logLevel)

	if err := run(*datadir, *chainID, *feedPath, logger); err != nil {
		logger.Error().Err(err).Msg("rubind exiting with error")
		os.Exit(1)
	}
}

func run(datadir, chainID, feedPath string, logger zerolog.Logger) error {
	db, err := store.Open(datadir, chainID)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := store.InitGenesis(db); err != nil {
		return fmt.Errorf("init genesis: %w", err)
	}

	engine, err := node.NewEngine(db, logger.With().Str("component", "engine").Logger())
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}

	in := os.Stdin
	if feedPath != "" {
		f, err := os.Open(feedPath)
		if err != nil {
			return fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var fl feedLine
		if err := json.Unmarshal(line, &fl); err != nil {
			logger.Error().Int("line", lineNo).Err(err).Msg("malformed feed line")
			continue
		}
		if err := processLine(engine, fl); err != nil {
			logger.Warn().Int("line", lineNo).Err(err).Msg("feed line rejected")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	logger.Info().Uint64("height", engine.Height()).Msg("feed replay complete")
	return nil
}

func processLine(engine *node.Engine, fl feedLine) error {
	if fl.BlockHex != "" {
		raw, err := hex.DecodeString(fl.BlockHex)
		if err != nil {
			return fmt.Errorf("decode block_hex: %w", err)
		}
		block, err := store.DecodeBlock(raw)
		if err != nil {
			return fmt.Errorf("decode block: %w", err)
		}
		return engine.AppendBlock(block)
	}
	if len(fl.ChainHex) > 0 {
		chain := make([]consensus.Block, 0, len(fl.ChainHex))
		for i, h := range fl.ChainHex {
			raw, err := hex.DecodeString(h)
			if err != nil {
				return fmt.Errorf("decode chain_hex[%d]: %w", i, err)
			}
			block, err := store.DecodeBlock(raw)
			if err != nil {
				return fmt.Errorf("decode chain block %d: %w", i, err)
			}
			chain = append(chain, *block)
		}
		_, err := engine.TryReorg(chain)
		return err
	}
	return fmt.Errorf("feed line has neither block_hex nor chain_hex")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
