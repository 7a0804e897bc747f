package api

import (
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// VersionInfo answers GET /api/v1/version
type VersionInfo struct {
	Version string `json:"version"`
}

// OwnerInfo is the ledger owner of one asset
type OwnerInfo struct {
	Collection string `json:"nft_address"`
	Instance   string `json:"token_id"`
	Owner      string `json:"owner"`
}

// SalesPage lists settlements of one asset, newest first
type SalesPage struct {
	Collection string         `json:"nft_address"`
	Instance   string         `json:"token_id"`
	Sales      []*market.Sale `json:"sales"`
}

// BalanceInfo is one account balance. Amount is a decimal string so
// 256-bit values survive JSON clients.
type BalanceInfo struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

// NonceInfo carries the last nonce accepted from an account; the next
// transaction must use Nonce+1 or higher
type NonceInfo struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// ChainStatus represents consensus layer status
type ChainStatus struct {
	Height      uint64 `json:"height"`      // Last executed block height
	AppHash     string `json:"appHash"`     // State commitment after Height
	ChainID     string `json:"chainId"`     // EIP-712 signing domain chain id
	Paused      bool   `json:"paused"`      // Marketplace pause flag
	MempoolSize int    `json:"mempoolSize"` // Pending transactions
}

// SubmitTxResponse is the response from transaction submission
type SubmitTxResponse struct {
	Status string `json:"status"` // "submitted"
	Hash   string `json:"hash"`
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce"`
	Action string `json:"action"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type    string      `json:"type"` // "subscribed", "block", "tx"
	Channel string      `json:"channel,omitempty"`
	Height  uint64      `json:"height,omitempty"`
	Data    interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["events", "asset:0x...:7"]
}
