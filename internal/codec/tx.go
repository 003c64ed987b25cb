package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth (required for value-spending txs, optional elsewhere):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (the spending account).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

// v0: mint is an unauthenticated devnet faucet.
type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- RPS ----

// StartGameTx opens a game under the caller's commitment. GameKey is the
// hex form of rps.GameKey; Value is the amount moved from the caller's
// bank balance into the stake settlement (the rest of the stake, if any,
// is taken from standing funds credit).
type StartGameTx struct {
	Player      string `json:"player"`
	GameKey     string `json:"gameKey"`
	Bet         uint64 `json:"bet"`
	ClosingSecs uint64 `json:"closingSecs"`
	Value       uint64 `json:"value,omitempty"`
}

type JoinGameTx struct {
	Player  string `json:"player"`
	GameKey string `json:"gameKey"`
	Move    uint8  `json:"move"`
	Value   uint64 `json:"value,omitempty"`
}

// RevealTx resolves a joined game. Caller is informational: whoever holds
// the secret may reveal, the commitment itself is the authorization.
type RevealTx struct {
	Caller  string `json:"caller,omitempty"`
	GameKey string `json:"gameKey"`
	Secret  []byte `json:"secret"` // base64 in JSON
	Move    uint8  `json:"move"`
}

type ReportFailedGameTx struct {
	Caller  string `json:"caller,omitempty"`
	GameKey string `json:"gameKey"`
}

type ReportUncoopGameTx struct {
	Caller  string `json:"caller,omitempty"`
	GameKey string `json:"gameKey"`
}

type WithdrawTx struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}
