package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"
)

// Rejection codes. Every failed tx carries one of these so clients can
// tell "try later" (TooEarly) from fatal misuse (BadReveal, SelfPlay)
// from "needs more funds" (InsufficientStake) without parsing logs.
const (
	codeOK uint32 = 0

	// Transport-level failures.
	codeInvalidTx    uint32 = 1
	codeUnauthorized uint32 = 2

	// Game state machine failures.
	codeGameAlreadyExists   uint32 = 10
	codeGameNotFound        uint32 = 11
	codeAlreadyJoined       uint32 = 12
	codeNoSecondPlayer      uint32 = 13
	codeSelfPlay            uint32 = 14
	codeInvalidDuration     uint32 = 15
	codeInvalidBet          uint32 = 16
	codeInvalidMove         uint32 = 17
	codeInsufficientStake   uint32 = 18
	codeInsufficientBalance uint32 = 19
	codeTooEarly            uint32 = 20
	codeBadReveal           uint32 = 21
)

func reject(code uint32, format string, args ...any) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: code, Log: fmt.Sprintf(format, args...)}
}
