package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"

	"rpschain/internal/codec"
	"rpschain/internal/rps"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func txBytes(t *testing.T, typ string, value any) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{
		"type":  typ,
		"value": value,
	})
}

// Strictly increasing across the whole test binary, which satisfies the
// per-signer replay rule.
var testNonceCounter uint64

func testEd25519Key(id string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("rpschain-test-key/" + id))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

func txBytesSigned(t *testing.T, typ string, value any, signer string) []byte {
	t.Helper()

	valueBytes := mustMarshal(t, value)
	testNonceCounter++
	nonce := fmt.Sprintf("%d", testNonceCounter)

	_, priv := testEd25519Key(signer)
	sig := ed25519.Sign(priv, txAuthSignBytesV1(typ, valueBytes, nonce, signer))

	return mustMarshal(t, codec.TxEnvelope{
		Type:   typ,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: signer,
		Sig:    sig,
	})
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

func newTestApp(t *testing.T) *RPSApp {
	t.Helper()
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != codeOK {
		t.Fatalf("expected ok, got code=%d log=%q", res.Code, res.Log)
	}
	return res
}

func mustFail(t *testing.T, res *abci.ExecTxResult, wantCode uint32) *abci.ExecTxResult {
	t.Helper()
	if res.Code != wantCode {
		t.Fatalf("expected code=%d, got code=%d log=%q", wantCode, res.Code, res.Log)
	}
	if len(res.Events) != 0 {
		t.Fatalf("failed tx must not emit events, got %d", len(res.Events))
	}
	return res
}

func mintTestTokens(t *testing.T, a *RPSApp, now int64, to string, amount uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytes(t, "bank/mint", map[string]any{"to": to, "amount": amount}), now))
}

func registerTestAccount(t *testing.T, a *RPSApp, now int64, id string) {
	t.Helper()
	pub, _ := testEd25519Key(id)
	mustOk(t, a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": id,
		"pubKey":  []byte(pub),
	}, id), now))
}

func testGameKey(secret string, move rps.Move, committer string) string {
	return rps.DeriveGameKey([]byte(secret), move, committer).String()
}

// setupFundedPlayers mints and registers alice and bob.
func setupFundedPlayers(t *testing.T, now int64, amount uint64) *RPSApp {
	t.Helper()
	a := newTestApp(t)
	mintTestTokens(t, a, now, "alice", amount)
	mintTestTokens(t, a, now, "bob", amount)
	registerTestAccount(t, a, now, "alice")
	registerTestAccount(t, a, now, "bob")
	return a
}

// startTestGame starts a default game committed by alice and returns its key.
func startTestGame(t *testing.T, a *RPSApp, now int64, secret string, move1 rps.Move, bet, closingSecs, value uint64) string {
	t.Helper()
	key := testGameKey(secret, move1, "alice")
	mustOk(t, a.deliverTx(txBytesSigned(t, "rps/start", map[string]any{
		"player":      "alice",
		"gameKey":     key,
		"bet":         bet,
		"closingSecs": closingSecs,
		"value":       value,
	}, "alice"), now))
	return key
}

func joinTestGame(t *testing.T, a *RPSApp, now int64, key string, move2 rps.Move, value uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytesSigned(t, "rps/join", map[string]any{
		"player":  "bob",
		"gameKey": key,
		"move":    uint8(move2),
		"value":   value,
	}, "bob"), now))
}
