package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// Action names used on the wire and in the "action" attribute
const (
	ActionSetPaused        = "set_paused"
	ActionCreateOrder      = "create_order"
	ActionUpdateOrder      = "update_order"
	ActionCancelOrder      = "cancel_order"
	ActionCreateBid        = "create_bid"
	ActionCancelBid        = "cancel_bid"
	ActionSafeExecuteOrder = "safe_execute_order"
	ActionAcceptBid        = "accept_bid"
)

// InstantiateMsg configures the marketplace at genesis
type InstantiateMsg struct {
	AcceptedToken common.Address  `json:"accepted_token"`
	OwnerCutRate  decimal.Decimal `json:"owner_cut_rate"`
}

// SetPausedMsg toggles the pause gate
type SetPausedMsg struct {
	Paused bool `json:"paused"`
}

// OrderMsg carries create_order, update_order and create_bid
type OrderMsg struct {
	Key
	Price    asset.Asset `json:"price"`
	ExpireAt Expiration  `json:"expire_at"`
}

// KeyMsg carries cancel_order and cancel_bid
type KeyMsg struct {
	Key
}

// SettleMsg carries safe_execute_order and accept_bid
type SettleMsg struct {
	Key
	Price asset.Asset `json:"price"`
}

// ExecuteMsg is a one-of: exactly one field is set.
// JSON: {"create_order":{"nft_address":"0x..","token_id":"1","price":{...},"expire_at":{...}}}
type ExecuteMsg struct {
	SetPaused        *SetPausedMsg `json:"set_paused,omitempty"`
	CreateOrder      *OrderMsg     `json:"create_order,omitempty"`
	UpdateOrder      *OrderMsg     `json:"update_order,omitempty"`
	CancelOrder      *KeyMsg       `json:"cancel_order,omitempty"`
	CreateBid        *OrderMsg     `json:"create_bid,omitempty"`
	CancelBid        *KeyMsg       `json:"cancel_bid,omitempty"`
	SafeExecuteOrder *SettleMsg    `json:"safe_execute_order,omitempty"`
	AcceptBid        *SettleMsg    `json:"accept_bid,omitempty"`
}

// Action names the single operation set on the message
func (m *ExecuteMsg) Action() string {
	switch {
	case m.SetPaused != nil:
		return ActionSetPaused
	case m.CreateOrder != nil:
		return ActionCreateOrder
	case m.UpdateOrder != nil:
		return ActionUpdateOrder
	case m.CancelOrder != nil:
		return ActionCancelOrder
	case m.CreateBid != nil:
		return ActionCreateBid
	case m.CancelBid != nil:
		return ActionCancelBid
	case m.SafeExecuteOrder != nil:
		return ActionSafeExecuteOrder
	case m.AcceptBid != nil:
		return ActionAcceptBid
	default:
		return ""
	}
}

// Validate checks the one-of shape
func (m *ExecuteMsg) Validate() error {
	set := 0
	for _, present := range []bool{
		m.SetPaused != nil,
		m.CreateOrder != nil,
		m.UpdateOrder != nil,
		m.CancelOrder != nil,
		m.CreateBid != nil,
		m.CancelBid != nil,
		m.SafeExecuteOrder != nil,
		m.AcceptBid != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("execute msg must set exactly one operation, got %d", set)
	}
	return nil
}

// ParseExecuteMsg decodes and validates a raw execute message
func ParseExecuteMsg(data []byte) (*ExecuteMsg, error) {
	if len(data) == 0 {
		return nil, errors.New("empty execute msg")
	}
	var msg ExecuteMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execute msg: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
