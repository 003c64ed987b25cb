package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"rpschain/internal/codec"
	"rpschain/internal/rps"
	"rpschain/internal/state"
)

// settleStake funds a stake of `required` for account from the attached
// value plus standing funds credit. The attached value is moved out of the
// bank balance first; any excess over the stake stays as funds credit.
// Start and join share this so full-cash, cash-plus-credit and pure-credit
// funding behave identically in both roles.
//
// Returns a rejection result, or nil when the stake is settled.
func settleStake(st *state.State, account string, required, attached uint64) *abci.ExecTxResult {
	if attached > 0 {
		if err := st.Debit(account, attached); err != nil {
			return reject(codeInsufficientStake, "attach value: %v", err)
		}
	}
	available, err := addU64Checked(st.FundsOf(account), attached, "stake settlement")
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	if available < required {
		return reject(codeInsufficientStake, "insufficient stake: available=%d required=%d", available, required)
	}
	st.Funds[account] = available - required
	return nil
}

func (a *RPSApp) handleStartGame(st *state.State, env codec.TxEnvelope, nowUnix int64) *abci.ExecTxResult {
	var msg codec.StartGameTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/start value: %v", err)
	}
	if msg.Player == "" {
		return reject(codeInvalidTx, "missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return reject(codeUnauthorized, "%v", err)
	}
	key, err := rps.ParseGameKey(msg.GameKey)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	if _, ok := st.Games[key.String()]; ok {
		return reject(codeGameAlreadyExists, "game already exists: %s", key)
	}
	if msg.ClosingSecs == 0 || msg.ClosingSecs > st.Params.MaxClosingSecs {
		return reject(codeInvalidDuration, "invalid closing duration: got %d max %d", msg.ClosingSecs, st.Params.MaxClosingSecs)
	}
	if msg.Bet == 0 {
		return reject(codeInvalidBet, "bet must be positive")
	}
	// The pot (2*bet) must be computable and must cover the tax, otherwise
	// resolution arithmetic could fail after the stakes are locked.
	pot, err := addU64Checked(msg.Bet, msg.Bet, "pot")
	if err != nil {
		return reject(codeInvalidBet, "%v", err)
	}
	if pot < st.Params.Tax {
		return reject(codeInvalidBet, "pot %d cannot cover tax %d", pot, st.Params.Tax)
	}

	if res := settleStake(st, msg.Player, msg.Bet, msg.Value); res != nil {
		return res
	}
	st.Games[key.String()] = &state.Game{
		Player1:     msg.Player,
		Bet:         msg.Bet,
		StartedAt:   nowUnix,
		ClosingSecs: msg.ClosingSecs,
	}

	return okEvent("GameStarted", map[string]string{
		"gameKey": key.String(),
		"player1": msg.Player,
		"bet":     fmt.Sprintf("%d", msg.Bet),
	})
}

func (a *RPSApp) handleJoinGame(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.JoinGameTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/join value: %v", err)
	}
	if msg.Player == "" {
		return reject(codeInvalidTx, "missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return reject(codeUnauthorized, "%v", err)
	}
	key, err := rps.ParseGameKey(msg.GameKey)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	g, ok := st.Games[key.String()]
	if !ok {
		return reject(codeGameNotFound, "game not found: %s", key)
	}
	if g.Joined() {
		return reject(codeAlreadyJoined, "game already joined by %s", g.Player2)
	}
	if msg.Player == g.Player1 {
		return reject(codeSelfPlay, "cannot join own game")
	}
	move := rps.Move(msg.Move)
	if !move.Valid() {
		return reject(codeInvalidMove, "invalid move: %d", msg.Move)
	}

	if res := settleStake(st, msg.Player, g.Bet, msg.Value); res != nil {
		return res
	}
	g.Player2 = msg.Player
	g.Move2 = move

	return okEvent("GameJoined", map[string]string{
		"gameKey": key.String(),
		"player2": msg.Player,
		"bet":     fmt.Sprintf("%d", g.Bet),
	})
}

func (a *RPSApp) handleReveal(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.RevealTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/reveal value: %v", err)
	}
	key, err := rps.ParseGameKey(msg.GameKey)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	g, ok := st.Games[key.String()]
	if !ok {
		return reject(codeGameNotFound, "game not found: %s", key)
	}
	if !g.Joined() {
		return reject(codeNoSecondPlayer, "no second player yet (report the game as failed after the deadline instead)")
	}
	// The key is re-derived against the stored player1, not the tx sender:
	// holding the secret is the authorization, so anyone may trigger
	// resolution.
	move1 := rps.Move(msg.Move)
	if !rps.VerifyReveal(msg.Secret, move1, g.Player1, key) {
		return reject(codeBadReveal, "revealed secret/move do not match commitment")
	}

	outcome, err := rps.Resolve(move1, g.Move2)
	if err != nil {
		return reject(codeInvalidMove, "%v", err)
	}

	if outcome == rps.OutcomeDraw {
		if err := creditBoth(st, g); err != nil {
			return reject(codeInvalidTx, "%v", err)
		}
		delete(st.Games, key.String())
		return okEvent("Draw", map[string]string{
			"gameKey": key.String(),
			"player1": g.Player1,
			"player2": g.Player2,
			"bet":     fmt.Sprintf("%d", g.Bet),
		})
	}

	winner := g.Player1
	if outcome == rps.OutcomePlayer2Wins {
		winner = g.Player2
	}
	winnings, err := payDecisivePot(st, g, winner)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	delete(st.Games, key.String())

	res := okEvent("Win", map[string]string{
		"gameKey":  key.String(),
		"winner":   winner,
		"winnings": fmt.Sprintf("%d", winnings),
	})
	appendTaxedEvent(res, key.String(), st.Params.Tax)
	return res
}

func (a *RPSApp) handleReportFailedGame(st *state.State, env codec.TxEnvelope, nowUnix int64) *abci.ExecTxResult {
	var msg codec.ReportFailedGameTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/report_failed value: %v", err)
	}
	key, err := rps.ParseGameKey(msg.GameKey)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	g, ok := st.Games[key.String()]
	if !ok {
		return reject(codeGameNotFound, "game not found: %s", key)
	}
	if g.Joined() {
		return reject(codeAlreadyJoined, "game was joined; report uncooperative play instead")
	}
	claimable, err := failedGameClaimable(g, nowUnix)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	if !claimable {
		deadline, _ := joinDeadline(g)
		return reject(codeTooEarly, "closing deadline not reached: now=%d deadline=%d", nowUnix, deadline)
	}

	if err := st.CreditFunds(g.Player1, g.Bet); err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	delete(st.Games, key.String())

	return okEvent("FailedGame", map[string]string{
		"gameKey": key.String(),
		"player1": g.Player1,
		"bet":     fmt.Sprintf("%d", g.Bet),
	})
}

func (a *RPSApp) handleReportUncoopGame(st *state.State, env codec.TxEnvelope, nowUnix int64) *abci.ExecTxResult {
	var msg codec.ReportUncoopGameTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/report_uncoop value: %v", err)
	}
	key, err := rps.ParseGameKey(msg.GameKey)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	g, ok := st.Games[key.String()]
	if !ok {
		return reject(codeGameNotFound, "game not found: %s", key)
	}
	if !g.Joined() {
		return reject(codeNoSecondPlayer, "no second player; report the game as failed instead")
	}
	claimable, err := uncoopClaimable(st, g, nowUnix)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	if !claimable {
		deadline, _ := revealDeadline(st, g)
		return reject(codeTooEarly, "dispute deadline not reached: now=%d deadline=%d", nowUnix, deadline)
	}

	winnings, err := payDecisivePot(st, g, g.Player2)
	if err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	delete(st.Games, key.String())

	res := okEvent("UncooperativeGame", map[string]string{
		"gameKey":  key.String(),
		"player2":  g.Player2,
		"winnings": fmt.Sprintf("%d", winnings),
	})
	appendTaxedEvent(res, key.String(), st.Params.Tax)
	return res
}

// payDecisivePot credits the full pot minus tax to the winner and accrues
// the tax to the pool. Start-time validation guarantees pot >= tax.
func payDecisivePot(st *state.State, g *state.Game, winner string) (uint64, error) {
	winnings := 2*g.Bet - st.Params.Tax
	if err := st.CreditFunds(winner, winnings); err != nil {
		return 0, err
	}
	pool, err := addU64Checked(st.TaxPool, st.Params.Tax, "tax pool")
	if err != nil {
		return 0, err
	}
	st.TaxPool = pool
	return winnings, nil
}

// creditBoth refunds each player's stake on a draw. No tax on draws.
func creditBoth(st *state.State, g *state.Game) error {
	if err := st.CreditFunds(g.Player1, g.Bet); err != nil {
		return err
	}
	return st.CreditFunds(g.Player2, g.Bet)
}

func appendTaxedEvent(res *abci.ExecTxResult, gameKey string, tax uint64) {
	if tax == 0 {
		return
	}
	res.Events = append(res.Events, abci.Event{
		Type: "Taxed",
		Attributes: []abci.EventAttribute{
			{Key: "gameKey", Value: gameKey, Index: true},
			{Key: "amount", Value: fmt.Sprintf("%d", tax), Index: false},
		},
	})
}
