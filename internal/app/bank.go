package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"rpschain/internal/codec"
	"rpschain/internal/state"
)

func (a *RPSApp) handleBankMint(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.BankMintTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad bank/mint value: %v", err)
	}
	if msg.To == "" || msg.Amount == 0 {
		return reject(codeInvalidTx, "missing to/amount")
	}
	if err := st.Credit(msg.To, msg.Amount); err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	return okEvent("BankMinted", map[string]string{
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	})
}

func (a *RPSApp) handleBankSend(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.BankSendTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad bank/send value: %v", err)
	}
	if msg.From == "" || msg.To == "" || msg.Amount == 0 {
		return reject(codeInvalidTx, "missing from/to/amount")
	}
	if err := requireAccountAuth(st, env, msg.From); err != nil {
		return reject(codeUnauthorized, "%v", err)
	}
	if err := st.Debit(msg.From, msg.Amount); err != nil {
		return reject(codeInsufficientBalance, "%v", err)
	}
	if err := st.Credit(msg.To, msg.Amount); err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	return okEvent("BankSent", map[string]string{
		"from":   msg.From,
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	})
}

func (a *RPSApp) handleRegisterAccount(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.AuthRegisterAccountTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad auth/register_account value: %v", err)
	}
	if err := requireRegisterAccountAuth(st, env, msg); err != nil {
		return reject(codeUnauthorized, "%v", err)
	}
	st.AccountKeys[msg.Account] = msg.PubKey
	return okEvent("AccountRegistered", map[string]string{
		"account": msg.Account,
	})
}

func (a *RPSApp) handleWithdraw(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.WithdrawTx
	if err := unmarshalValue(env, &msg); err != nil {
		return reject(codeInvalidTx, "bad rps/withdraw value: %v", err)
	}
	if msg.Account == "" || msg.Amount == 0 {
		return reject(codeInvalidTx, "missing account/amount")
	}
	if err := requireAccountAuth(st, env, msg.Account); err != nil {
		return reject(codeUnauthorized, "%v", err)
	}
	// Ledger debit strictly precedes the outbound transfer so no caller
	// can ever observe a stale, larger withdrawable balance.
	if err := st.DebitFunds(msg.Account, msg.Amount); err != nil {
		return reject(codeInsufficientBalance, "%v", err)
	}
	if err := st.Credit(msg.Account, msg.Amount); err != nil {
		return reject(codeInvalidTx, "%v", err)
	}
	return okEvent("Withdrawal", map[string]string{
		"account": msg.Account,
		"amount":  fmt.Sprintf("%d", msg.Amount),
	})
}
