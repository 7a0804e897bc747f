package nft

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hypermarket/pkg/abci"
	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/ledger"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

// deliverTx runs one tx against the block batch. Ante (nonce) and
// execution get separate overlays so the nonce bump survives a failed msg.
func (a *App) deliverTx(block storage.KV, env market.Env, raw []byte) (abci.TxResult, TxOutcome) {
	out := TxOutcome{Hash: crypto.Keccak256Hash(raw).Hex()}
	fail := func(code uint32, err error) (abci.TxResult, TxOutcome) {
		out.Code, out.Log = code, err.Error()
		a.metrics.observeTx(out.Action, code)
		a.logger.Debugw("tx_rejected", "hash", out.Hash, "action", out.Action, "code", code, "err", err)
		return abci.TxResult{Code: code, Log: out.Log}, out
	}

	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return fail(CodeDecode, err)
	}
	out.Sender = tx.Sender
	msg, err := tx.ExecuteMsg()
	if err != nil {
		return fail(CodeDecode, err)
	}
	out.Action = msg.Action()
	if k, ok := msgKey(msg); ok {
		out.Key = &k
	}

	if _, err := a.verifier.Verify(tx); err != nil {
		return fail(CodeSignature, err)
	}

	ante := storage.NewOverlay(block)
	if err := ledger.New(ante).UseNonce(tx.Sender, tx.Nonce); err != nil {
		ante.Discard()
		return fail(CodeNonce, err)
	}
	if err := ante.Commit(); err != nil {
		return fail(CodeExecution, err)
	}

	exec := storage.NewOverlay(block)
	defer exec.Discard()

	if err := checkFunds(msg, tx.Funds); err != nil {
		return fail(CodeFunds, err)
	}
	l := ledger.New(exec)
	if err := l.Escrow(tx.Sender, tx.Funds); err != nil {
		return fail(codeFor(err), err)
	}
	if pay, ok := tokenPayment(msg); ok {
		if err := l.Escrow(tx.Sender, []asset.Asset{pay}); err != nil {
			return fail(codeFor(err), err)
		}
	}

	deps := market.Deps{Store: storage.NewMarketStore(exec), Registry: l}
	info := market.Info{Sender: tx.Sender, Funds: tx.Funds}
	resp, err := dispatch(deps, env, info, msg)
	if err != nil {
		return fail(codeFor(err), err)
	}
	if err := l.ExecuteAll(resp.Instructions); err != nil {
		return fail(codeFor(err), err)
	}
	if err := exec.Commit(); err != nil {
		return fail(CodeExecution, err)
	}

	out.Attributes = resp.Attributes
	a.metrics.observeTx(out.Action, CodeOK)
	if kind, ok := saleKind(out.Action); ok {
		a.metrics.sales.WithLabelValues(string(kind)).Inc()
	}
	a.logger.Debugw("tx_executed", "hash", out.Hash, "action", out.Action, "sender", tx.Sender.Hex())
	return abci.TxResult{Code: CodeOK, Events: responseEvents(out.Action, resp)}, out
}

// dispatch routes msg to its engine operation behind the pause gate.
// set_paused bypasses the gate so the owner can always unpause.
func dispatch(deps market.Deps, env market.Env, info market.Info, msg *market.ExecuteMsg) (*market.Response, error) {
	if msg.SetPaused != nil {
		return market.SetPaused(deps, env, info, *msg.SetPaused)
	}

	paused, err := deps.Store.Paused()
	if err != nil {
		return nil, fmt.Errorf("load paused: %w", err)
	}
	if paused {
		return nil, market.ErrMarketplacePaused
	}

	switch {
	case msg.CreateOrder != nil:
		return market.CreateOrder(deps, env, info, *msg.CreateOrder)
	case msg.UpdateOrder != nil:
		return market.UpdateOrder(deps, env, info, *msg.UpdateOrder)
	case msg.CancelOrder != nil:
		return market.CancelOrder(deps, env, info, *msg.CancelOrder)
	case msg.CreateBid != nil:
		return market.CreateBid(deps, env, info, *msg.CreateBid)
	case msg.CancelBid != nil:
		return market.CancelBid(deps, env, info, *msg.CancelBid)
	case msg.SafeExecuteOrder != nil:
		return market.SafeExecuteOrder(deps, env, info, *msg.SafeExecuteOrder)
	case msg.AcceptBid != nil:
		return market.AcceptBid(deps, env, info, *msg.AcceptBid)
	default:
		return nil, errors.New("empty execute msg")
	}
}

// msgKey returns the asset a message targets
func msgKey(msg *market.ExecuteMsg) (market.Key, bool) {
	switch {
	case msg.CreateOrder != nil:
		return msg.CreateOrder.Key, true
	case msg.UpdateOrder != nil:
		return msg.UpdateOrder.Key, true
	case msg.CancelOrder != nil:
		return msg.CancelOrder.Key, true
	case msg.CreateBid != nil:
		return msg.CreateBid.Key, true
	case msg.CancelBid != nil:
		return msg.CancelBid.Key, true
	case msg.SafeExecuteOrder != nil:
		return msg.SafeExecuteOrder.Key, true
	case msg.AcceptBid != nil:
		return msg.AcceptBid.Key, true
	default:
		return market.Key{}, false
	}
}

// errFundsMismatch wraps asset.ErrInsufficientFunds so a bad attachment
// reports the funds code
var errFundsMismatch = fmt.Errorf("%w: attached funds do not match the payment", asset.ErrInsufficientFunds)

// payment is the price a msg settles with, for the actions that carry
// one through funds or a token pull
func payment(msg *market.ExecuteMsg) (asset.Asset, bool) {
	switch {
	case msg.SafeExecuteOrder != nil:
		return msg.SafeExecuteOrder.Price, true
	case msg.CreateBid != nil:
		return msg.CreateBid.Price, true
	case msg.AcceptBid != nil:
		return msg.AcceptBid.Price, true
	default:
		return asset.Asset{}, false
	}
}

// checkFunds requires the attached funds to be exactly the native price
// coin, or nothing at all. Every escrowed coin must be paid out or held
// against a bid; anything else would strand in the module account.
func checkFunds(msg *market.ExecuteMsg, funds []asset.Asset) error {
	price, ok := payment(msg)
	if !ok || price.Info == nil || !price.IsNative() || price.Amount == nil || price.Amount.IsZero() {
		if len(funds) > 0 {
			return fmt.Errorf("%w: %s takes no funds, got %d coins", errFundsMismatch, msg.Action(), len(funds))
		}
		return nil
	}
	if len(funds) != 1 || !funds[0].Equal(price) {
		return fmt.Errorf("%w: %s takes exactly %s", errFundsMismatch, msg.Action(), price)
	}
	return nil
}

// tokenPayment is the ledger-token amount a buyer or bidder commits.
// Tokens cannot ride along as funds, so the host pulls them into escrow
// before the engine runs, as a token contract's send hook would.
func tokenPayment(msg *market.ExecuteMsg) (asset.Asset, bool) {
	if msg.AcceptBid != nil {
		return asset.Asset{}, false
	}
	price, ok := payment(msg)
	if !ok || price.Info == nil || price.IsNative() {
		return asset.Asset{}, false
	}
	return price, true
}

func saleKind(action string) (market.SaleKind, bool) {
	switch action {
	case market.ActionSafeExecuteOrder:
		return market.SaleDirect, true
	case market.ActionAcceptBid:
		return market.SaleBid, true
	default:
		return "", false
	}
}

func codeFor(err error) uint32 {
	if errors.Is(err, asset.ErrInsufficientFunds) {
		return CodeFunds
	}
	return CodeExecution
}

func responseEvents(action string, resp *market.Response) []abci.Event {
	ev := abci.Event{Type: "market"}
	for _, attr := range resp.Attributes {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: attr.Key, Value: attr.Value})
	}
	events := []abci.Event{ev}
	for _, ins := range resp.Instructions {
		events = append(events, abci.Event{
			Type: ins.Kind(),
			Attributes: []abci.EventAttribute{
				{Key: "action", Value: action},
				{Key: "instruction", Value: fmt.Sprint(ins)},
			},
		})
	}
	return events
}
