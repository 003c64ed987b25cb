package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rpschain/internal/rps"
)

// Params is the deployment-time protocol configuration. It is frozen at
// InitChain; no transaction can change it afterwards.
type Params struct {
	// MaxClosingSecs bounds the closing duration a game may be started with.
	MaxClosingSecs uint64 `json:"maxClosingSecs"`
	// DisputeOffsetSecs is the grace period after the closing deadline
	// before an unrevealed joined game can be claimed by player2.
	DisputeOffsetSecs uint64 `json:"disputeOffsetSecs"`
	// Tax is deducted from every decisive pot (wins and uncooperative
	// claims; never on a draw) and accrues to the tax pool.
	Tax uint64 `json:"tax"`
}

func DefaultParams() Params {
	return Params{
		MaxClosingSecs:    86400,
		DisputeOffsetSecs: 3600,
		Tax:               0,
	}
}

// Game is an active game record, keyed in State.Games by the hex game key.
// Player2 and Move2 stay zero until a join; they are set together.
type Game struct {
	Player1     string   `json:"player1"`
	Player2     string   `json:"player2,omitempty"`
	Bet         uint64   `json:"bet"`
	Move2       rps.Move `json:"move2,omitempty"`
	StartedAt   int64    `json:"startedAt"`
	ClosingSecs uint64   `json:"closingSecs"`
}

func (g *Game) Joined() bool {
	return g.Player2 != ""
}

// Pot returns the value currently locked in the record: one stake before a
// join, both stakes after.
func (g *Game) Pot() uint64 {
	if g.Joined() {
		return 2 * g.Bet
	}
	return g.Bet
}

type State struct {
	Height int64 `json:"height"`

	Params Params `json:"params"`

	// Accounts are spendable bank balances; Funds is the withdrawable
	// credit ledger held by the game module. Stakes settle out of
	// (attached value + Funds); payouts and refunds land in Funds.
	Accounts map[string]uint64 `json:"accounts"`
	Funds    map[string]uint64 `json:"funds"`

	// TaxPool accrues the protocol tax taken from decisive pots. Nothing
	// at runtime can spend it; its disposition is a deployment decision.
	TaxPool uint64 `json:"taxPool,omitempty"`

	Games map[string]*Game `json:"games"`

	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce (u64), for replay protection
}

func NewState() *State {
	return &State{
		Height:      0,
		Params:      DefaultParams(),
		Accounts:    map[string]uint64{},
		Funds:       map[string]uint64{},
		Games:       map[string]*Game{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
	}
}

func (s *State) normalizeEmpty() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.Funds == nil {
		s.Funds = map[string]uint64{}
	}
	if s.Games == nil {
		s.Games = map[string]*Game{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalizeEmpty()
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution:
// a handler runs against the clone and the clone replaces the live state
// only if the handler succeeds.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalizeEmpty()
	return &out, nil
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by
	// serializing a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type balanceKV struct {
		Addr   string `json:"addr"`
		Amount uint64 `json:"amount"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type gameKV struct {
		Key  string `json:"key"`
		Game *Game  `json:"game"`
	}

	sortBalances := func(m map[string]uint64) []balanceKV {
		out := make([]balanceKV, 0, len(m))
		for k, v := range m {
			out = append(out, balanceKV{Addr: k, Amount: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
		return out
	}

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	games := make([]gameKV, 0, len(s.Games))
	for k, g := range s.Games {
		games = append(games, gameKV{Key: k, Game: g})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Key < games[j].Key })

	normalized := struct {
		Height      int64          `json:"height"`
		Params      Params         `json:"params"`
		Accounts    []balanceKV    `json:"accounts"`
		Funds       []balanceKV    `json:"funds"`
		TaxPool     uint64         `json:"taxPool"`
		Games       []gameKV       `json:"games"`
		AccountKeys []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV      `json:"nonceMax,omitempty"`
	}{
		Height:      s.Height,
		Params:      s.Params,
		Accounts:    sortBalances(s.Accounts),
		Funds:       sortBalances(s.Funds),
		TaxPool:     s.TaxPool,
		Games:       games,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Funds ledger ----

func (s *State) FundsOf(addr string) uint64 {
	return s.Funds[addr]
}

func (s *State) CreditFunds(addr string, amount uint64) error {
	bal := s.Funds[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("funds overflow: have=%d add=%d", bal, amount)
	}
	s.Funds[addr] = bal + amount
	return nil
}

func (s *State) DebitFunds(addr string, amount uint64) error {
	bal := s.Funds[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds credit: have=%d need=%d", bal, amount)
	}
	s.Funds[addr] = bal - amount
	return nil
}

// TotalLocked sums the value held inside active game records. Together
// with bank balances, the funds ledger and the tax pool it accounts for
// every token ever minted.
func (s *State) TotalLocked() uint64 {
	var total uint64
	for _, g := range s.Games {
		total += g.Pot()
	}
	return total
}
