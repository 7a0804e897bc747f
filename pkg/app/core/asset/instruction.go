package asset

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Instruction is a transfer the host must carry out after a successful
// invocation. Instructions are only ever constructed by the engine; the
// host executes them in order.
type Instruction interface {
	// Kind names the instruction on the wire
	Kind() string
	isInstruction()
}

// BankSend pays native coins out of the marketplace account
type BankSend struct {
	To     common.Address
	Denom  string
	Amount *uint256.Int
}

// TokenTransfer pays ledger tokens out of the marketplace account
type TokenTransfer struct {
	Contract common.Address
	To       common.Address
	Amount   *uint256.Int
}

// NFTTransfer moves the non-fungible asset (collection, instance) to a new owner
type NFTTransfer struct {
	Collection common.Address
	Instance   string
	To         common.Address
}

func (BankSend) Kind() string      { return "bank_send" }
func (TokenTransfer) Kind() string { return "token_transfer" }
func (NFTTransfer) Kind() string   { return "nft_transfer" }

func (BankSend) isInstruction()      {}
func (TokenTransfer) isInstruction() {}
func (NFTTransfer) isInstruction()   {}

func (b BankSend) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"kind":   b.Kind(),
		"to":     b.To.Hex(),
		"denom":  b.Denom,
		"amount": b.Amount.Dec(),
	})
}

func (t TokenTransfer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"kind":     t.Kind(),
		"contract": t.Contract.Hex(),
		"to":       t.To.Hex(),
		"amount":   t.Amount.Dec(),
	})
}

func (n NFTTransfer) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"kind":       n.Kind(),
		"collection": n.Collection.Hex(),
		"instance":   n.Instance,
		"to":         n.To.Hex(),
	})
}

func (b BankSend) String() string {
	return fmt.Sprintf("bank_send(%s%s -> %s)", b.Amount.Dec(), b.Denom, b.To.Hex())
}

func (t TokenTransfer) String() string {
	return fmt.Sprintf("token_transfer(%s %s -> %s)", t.Amount.Dec(), t.Contract.Hex(), t.To.Hex())
}

func (n NFTTransfer) String() string {
	return fmt.Sprintf("nft_transfer(%s/%s -> %s)", n.Collection.Hex(), n.Instance, n.To.Hex())
}
