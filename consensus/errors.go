package consensus

import "fmt"

// ErrorCode identifies a consensus rejection reason. Every value here is
// named in spec.md §7; none are recovered locally — a typed rejection is
// always returned to the caller, never a panic.
type ErrorCode string

const (
	ErrBadHeight    ErrorCode = "BAD_HEIGHT"
	ErrBadLinkage   ErrorCode = "BAD_LINKAGE"
	ErrBadTimestamp ErrorCode = "BAD_TIMESTAMP"
	ErrBadDifficulty ErrorCode = "BAD_DIFFICULTY"
	ErrBadPoW       ErrorCode = "BAD_POW"
	ErrBadMerkle    ErrorCode = "BAD_MERKLE"
	ErrBadCoinbase  ErrorCode = "BAD_COINBASE"

	ErrMissingUTXO      ErrorCode = "BAD_TRANSACTION/MISSING_UTXO"
	ErrImmatureCoinbase ErrorCode = "BAD_TRANSACTION/IMMATURE_COINBASE"
	ErrBadPubkey        ErrorCode = "BAD_TRANSACTION/BAD_PUBKEY"
	ErrBadPubkeyHash    ErrorCode = "BAD_TRANSACTION/BAD_PUBKEY_HASH"
	ErrBadSignature     ErrorCode = "BAD_TRANSACTION/BAD_SIGNATURE"
	ErrDoubleSpend      ErrorCode = "BAD_TRANSACTION/DOUBLE_SPEND"
	ErrInflation        ErrorCode = "BAD_TRANSACTION/INFLATION"

	ErrMalformedBytes ErrorCode = "MALFORMED_BYTES"
)

// ConsensusError is the typed rejection reason returned by every validating
// entry point. It deliberately carries no stack trace or wrapped I/O error:
// consensus rejections are finite, deterministic outcomes, not bugs.
type ConsensusError struct {
	Code   ErrorCode
	Reason string
}

func (e *ConsensusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func rejectf(code ErrorCode, format string, args ...any) error {
	return &ConsensusError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a *ConsensusError.
func CodeOf(err error) ErrorCode {
	var ce *ConsensusError
	if err == nil {
		return ""
	}
	if asConsensusError(err, &ce) {
		return ce.Code
	}
	return ""
}

func asConsensusError(err error, target **ConsensusError) bool {
	ce, ok := err.(*ConsensusError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
