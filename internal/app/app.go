package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"rpschain/internal/codec"
	"rpschain/internal/state"
)

const (
	AppVersion uint64 = 1
)

// RPSApp is the ABCI application hosting the commit-reveal game engine.
// CometBFT serializes FinalizeBlock calls, so every tx executes atomically
// against the single shared state; block time is the protocol clock.
type RPSApp struct {
	*abci.BaseApplication

	home string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string) (*RPSApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &RPSApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *RPSApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "rpschain (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *RPSApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: codeInvalidTx, Log: err.Error()}, nil
	}
	// Only structural validation here; auth and state checks run at
	// delivery where the authoritative state is available.
	return &abci.CheckTxResponse{Code: codeOK}, nil
}

// genesisDoc is the app_state JSON understood by InitChain. Params are
// frozen into state; accounts are optional pre-funded bank balances.
type genesisDoc struct {
	Params   *state.Params     `json:"params,omitempty"`
	Accounts map[string]uint64 `json:"accounts,omitempty"`
}

func (a *RPSApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) > 0 {
		var doc genesisDoc
		if err := json.Unmarshal(req.AppStateBytes, &doc); err != nil {
			return nil, fmt.Errorf("decode genesis app_state: %w", err)
		}
		if doc.Params != nil {
			if doc.Params.MaxClosingSecs == 0 {
				return nil, fmt.Errorf("genesis: maxClosingSecs must be positive")
			}
			a.st.Params = *doc.Params
		}
		for addr, amount := range doc.Accounts {
			if err := a.st.Credit(addr, amount); err != nil {
				return nil, fmt.Errorf("genesis account %q: %w", addr, err)
			}
		}
	}
	a.lastHash = a.st.AppHash()
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *RPSApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height
	nowUnix := req.Time.Unix()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, nowUnix)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *RPSApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *RPSApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>   bank balance
	// - /funds/<addr>     withdrawable game credit
	// - /game/<hexKey>    active game record
	// - /games            active game keys
	// - /params           frozen configuration + tax pool
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		keys := make([]string, 0, len(a.st.Games))
		for k := range a.st.Games {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b, _ := json.Marshal(keys)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case path == "/params":
		b, _ := json.Marshal(map[string]any{
			"params":  a.st.Params,
			"taxPool": a.st.TaxPool,
		})
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": a.st.Balance(addr)})
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/funds/"):
		addr := strings.TrimPrefix(path, "/funds/")
		b, _ := json.Marshal(map[string]any{"addr": addr, "funds": a.st.FundsOf(addr)})
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/game/"):
		key := strings.TrimPrefix(path, "/game/")
		g, ok := a.st.Games[key]
		if !ok {
			return &abci.QueryResponse{Code: codeGameNotFound, Log: "game not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(g)
		return &abci.QueryResponse{Code: codeOK, Value: b, Height: a.st.Height}, nil
	default:
		return &abci.QueryResponse{Code: codeInvalidTx, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

// deliverTx executes one tx with staged semantics: the handler runs
// against a deep clone and the clone only replaces the live state when the
// handler reports success. A failed tx therefore leaves no partial
// effects, whatever the handler did before failing.
func (a *RPSApp) deliverTx(txBytes []byte, nowUnix int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}

	staged, err := a.st.Clone()
	if err != nil {
		return reject(codeInvalidTx, "stage state: %v", err)
	}

	res := a.applyTx(staged, env, nowUnix)
	if res.Code == codeOK {
		a.st = staged
	}
	return res
}

func (a *RPSApp) applyTx(st *state.State, env codec.TxEnvelope, nowUnix int64) *abci.ExecTxResult {
	switch env.Type {
	case "bank/mint":
		return a.handleBankMint(st, env)
	case "bank/send":
		return a.handleBankSend(st, env)
	case "auth/register_account":
		return a.handleRegisterAccount(st, env)
	case "rps/start":
		return a.handleStartGame(st, env, nowUnix)
	case "rps/join":
		return a.handleJoinGame(st, env)
	case "rps/reveal":
		return a.handleReveal(st, env)
	case "rps/report_failed":
		return a.handleReportFailedGame(st, env, nowUnix)
	case "rps/report_uncoop":
		return a.handleReportUncoopGame(st, env, nowUnix)
	case "rps/withdraw":
		return a.handleWithdraw(st, env)
	default:
		return reject(codeInvalidTx, "unknown tx type: %s", env.Type)
	}
}

func unmarshalValue(env codec.TxEnvelope, out any) error {
	return json.Unmarshal(env.Value, out)
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   codeOK,
		Events: []abci.Event{ev},
	}
}
