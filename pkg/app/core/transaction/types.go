package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

// SignedTransaction is one marketplace invocation signed by its sender
//
//	{
//	  "sender": "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//	  "nonce": 3,
//	  "msg": {"create_bid": {"nft_address": "0x..", "token_id": "7", "price": {...}, "expire_at": {"never": {}}}},
//	  "funds": [{"info": {"native_token": {"denom": "uluna"}}, "amount": "12000"}],
//	  "signature": "0x..."
//	}
type SignedTransaction struct {
	Sender    common.Address  `json:"sender"`
	Nonce     uint64          `json:"nonce"`
	Msg       json.RawMessage `json:"msg"`
	Funds     []asset.Asset   `json:"funds,omitempty"`
	Signature string          `json:"signature"` // Hex-encoded (0x...)
}

// Serialize converts SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedTransaction
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate performs basic validation on transaction structure
func (tx *SignedTransaction) Validate() error {
	if tx.Sender == (common.Address{}) {
		return errors.New("missing sender")
	}
	if tx.Nonce == 0 {
		return errors.New("nonce must start at 1")
	}
	if len(tx.Msg) == 0 {
		return errors.New("missing msg")
	}
	if tx.Signature == "" {
		return errors.New("missing signature")
	}
	for i, f := range tx.Funds {
		if !f.IsNative() {
			return fmt.Errorf("funds[%d]: only native coins can be attached", i)
		}
	}
	return nil
}

// ExecuteMsg decodes the embedded marketplace message
func (tx *SignedTransaction) ExecuteMsg() (*market.ExecuteMsg, error) {
	return market.ParseExecuteMsg(tx.Msg)
}

// Action names the marketplace operation, or "" when msg does not decode
func (tx *SignedTransaction) Action() string {
	msg, err := tx.ExecuteMsg()
	if err != nil {
		return ""
	}
	return msg.Action()
}

// ToEIP712 builds the typed data the sender signed. Msg is re-marshalled
// so the digest does not depend on whitespace in the submitted JSON.
func (tx *SignedTransaction) ToEIP712() (*crypto.MarketTxEIP712, error) {
	msg, err := json.Marshal(tx.Msg)
	if err != nil {
		return nil, fmt.Errorf("invalid msg: %w", err)
	}
	funds := tx.Funds
	if funds == nil {
		funds = []asset.Asset{}
	}
	fundsJSON, err := json.Marshal(funds)
	if err != nil {
		return nil, fmt.Errorf("invalid funds: %w", err)
	}
	return &crypto.MarketTxEIP712{
		Sender: tx.Sender,
		Nonce:  new(big.Int).SetUint64(tx.Nonce),
		Msg:    string(msg),
		Funds:  string(fundsJSON),
	}, nil
}

// ParseTransaction decodes and structurally validates a raw transaction
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}

// Build assembles an unsigned transaction from an execute message
func Build(sender common.Address, nonce uint64, msg *market.ExecuteMsg, funds []asset.Asset) (*SignedTransaction, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msg: %w", err)
	}
	return &SignedTransaction{Sender: sender, Nonce: nonce, Msg: raw, Funds: funds}, nil
}
