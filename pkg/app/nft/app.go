// Package nft hosts the marketplace engine as a block-executing
// application: it verifies signed transactions, runs them against the
// engine inside a store batch and settles the resulting instructions on
// the devnet ledger.
package nft

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/abci"
	"github.com/uhyunpark/hypermarket/pkg/app/core/ledger"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/mempool"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

// Result codes carried in abci.TxResult
const (
	CodeOK        uint32 = 0
	CodeDecode    uint32 = 1
	CodeSignature uint32 = 2
	CodeNonce     uint32 = 3
	CodeFunds     uint32 = 4
	CodeExecution uint32 = 5
)

// TxOutcome is the published view of one executed tx
type TxOutcome struct {
	Hash       string             `json:"hash"`
	Sender     common.Address     `json:"sender"`
	Action     string             `json:"action"`
	Key        *market.Key        `json:"key,omitempty"`
	Code       uint32             `json:"code"`
	Log        string             `json:"log,omitempty"`
	Attributes []market.Attribute `json:"attributes,omitempty"`
}

// BlockOutcome is published after every executed block
type BlockOutcome struct {
	Height  uint64      `json:"height"`
	Time    uint64      `json:"time"`
	AppHash string      `json:"app_hash"`
	Txs     []TxOutcome `json:"txs"`
}

type Options struct {
	Domain   crypto.EIP712Domain
	Logger   *zap.SugaredLogger
	Registry prometheus.Registerer // nil: metrics are kept but not exported
}

type App struct {
	mu         sync.Mutex
	db         storage.Backend
	mempool    *mempool.Mempool
	verifier   *transaction.Verifier
	logger     *zap.SugaredLogger
	metrics    *Metrics
	height     uint64
	appHash    [32]byte
	onBlock    func(BlockOutcome)
	maxTxBytes int64
}

// NewApp opens the application over db and resumes from the last
// executed height recorded there
func NewApp(db storage.Backend, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{
		db:         db,
		mempool:    mempool.NewMempool(),
		verifier:   transaction.NewVerifier(opts.Domain),
		logger:     logger,
		metrics:    NewMetrics(opts.Registry),
		maxTxBytes: 1 << 20,
	}

	head := storage.NewLedgerStore(db)
	h, err := head.LastHeight()
	if err != nil {
		return nil, fmt.Errorf("load height: %w", err)
	}
	hash, err := head.AppHash()
	if err != nil {
		return nil, fmt.Errorf("load app hash: %w", err)
	}
	a.height, a.appHash = h, hash
	a.metrics.height.Set(float64(h))
	return a, nil
}

// SetBlockHandler registers fn to receive every executed block
func (a *App) SetBlockHandler(fn func(BlockOutcome)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onBlock = fn
}

// CheckTx rejects a tx that can never execute: malformed, badly signed,
// or reusing a committed nonce
func (a *App) CheckTx(raw []byte) (*transaction.SignedTransaction, error) {
	if int64(len(raw)) > a.maxTxBytes {
		return nil, fmt.Errorf("tx exceeds %d bytes", a.maxTxBytes)
	}
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecuteMsg(); err != nil {
		return nil, err
	}
	if _, err := a.verifier.Verify(tx); err != nil {
		return nil, err
	}
	last, err := ledger.New(a.db).Nonce(tx.Sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce <= last {
		return nil, fmt.Errorf("%w: got %d, last %d", ledger.ErrStaleNonce, tx.Nonce, last)
	}
	return tx, nil
}

// SubmitTx checks raw and queues it for the next block
func (a *App) SubmitTx(raw []byte) (*transaction.SignedTransaction, error) {
	tx, err := a.CheckTx(raw)
	if err != nil {
		return nil, err
	}
	a.PushTx(raw)
	return tx, nil
}

// PushTx queues raw without checking it
func (a *App) PushTx(b []byte) {
	a.mempool.PushRaw(b)
	a.metrics.mempoolSize.Set(float64(a.mempool.Len()))
}

func (a *App) PendingTxs() int { return a.mempool.Len() }

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	txs := a.mempool.SelectForProposal(req.MaxTxBytes)
	a.metrics.mempoolSize.Set(float64(a.mempool.Len()))
	return abci.ResponsePrepareProposal{Txs: txs}
}

func (a *App) ProcessProposal(_ abci.RequestProcessProposal) abci.ResponseProcessProposal {
	return abci.ResponseProcessProposal{Accept: true}
}

// FinalizeBlock executes req.Txs in order inside one batch. Each tx runs
// in its own overlay: a failed tx leaves no trace except its nonce bump.
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	height := uint64(req.Height)
	if height <= a.height {
		// Already executed (replay after restart)
		a.logger.Warnw("block_already_executed", "height", height, "app_height", a.height)
		return abci.ResponseFinalizeBlock{Events: []string{"replay"}, AppHash: a.appHash}
	}

	env := market.Env{Height: height, Time: uint64(req.Timestamp)}
	batch := a.db.Begin()
	defer batch.Discard()

	results := make([]abci.TxResult, len(req.Txs))
	outcomes := make([]TxOutcome, len(req.Txs))
	for i, raw := range req.Txs {
		results[i], outcomes[i] = a.deliverTx(batch, env, raw)
	}

	appHash := computeAppHash(a.appHash, env, req.Txs, results)
	if err := storage.NewLedgerStore(batch).SetHead(height, appHash); err != nil {
		panic(fmt.Errorf("record head %d: %w", height, err))
	}
	if err := batch.Commit(); err != nil {
		// State and consensus would diverge; the node must stop
		panic(fmt.Errorf("commit block %d: %w", height, err))
	}
	a.height, a.appHash = height, appHash
	a.metrics.height.Set(float64(height))
	a.metrics.blockTxs.Observe(float64(len(req.Txs)))

	// Quiet logging: only log non-empty blocks
	if len(req.Txs) > 0 {
		a.logger.Infow("block_executed",
			"height", height,
			"txs", len(req.Txs),
			"app_hash", "0x"+hex.EncodeToString(appHash[:]),
		)
	}

	if a.onBlock != nil {
		a.onBlock(BlockOutcome{
			Height:  height,
			Time:    env.Time,
			AppHash: "0x" + hex.EncodeToString(appHash[:]),
			Txs:     outcomes,
		})
	}

	return abci.ResponseFinalizeBlock{
		Events:    []string{"commit"},
		TxResults: results,
		AppHash:   appHash,
	}
}

// Height is the last executed block height
func (a *App) Height() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height
}

// AppHash is the state commitment after Height
func (a *App) AppHash() [32]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appHash
}

var _ abci.Application = (*App)(nil)
