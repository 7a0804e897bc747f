package asset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInsufficientFunds is returned when the native funds attached to an
// invocation do not match the amount an asset requires.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Info identifies a denomination: either a chain-native coin or a token
// held in a ledger contract.
type Info interface {
	// Key is the stable identifier used in ledger keys and comparisons
	// Format: "native:{denom}" or "token:{contract}"
	Key() string
	String() string
	isInfo()
}

// NativeToken is a chain-native coin identified by its denom
type NativeToken struct {
	Denom string
}

func (n NativeToken) Key() string    { return "native:" + n.Denom }
func (n NativeToken) String() string { return n.Denom }
func (NativeToken) isInfo()          {}

// Token is a balance held in a fungible-token ledger contract
type Token struct {
	Contract common.Address
}

func (t Token) Key() string    { return "token:" + t.Contract.Hex() }
func (t Token) String() string { return t.Contract.Hex() }
func (Token) isInfo()          {}

// Asset is an amount in a given denomination
type Asset struct {
	Info   Info
	Amount *uint256.Int
}

// Native builds a native-coin asset
func Native(denom string, amount uint64) Asset {
	return Asset{Info: NativeToken{Denom: denom}, Amount: uint256.NewInt(amount)}
}

// FromToken builds a ledger-token asset
func FromToken(contract common.Address, amount uint64) Asset {
	return Asset{Info: Token{Contract: contract}, Amount: uint256.NewInt(amount)}
}

// IsNative reports whether the asset is a chain-native coin
func (a Asset) IsNative() bool {
	_, ok := a.Info.(NativeToken)
	return ok
}

// SameDenom reports whether both assets share a denomination
func (a Asset) SameDenom(other Asset) bool {
	return SameInfo(a.Info, other.Info)
}

// Equal requires the same denomination and the same amount
func (a Asset) Equal(other Asset) bool {
	return a.SameDenom(other) && a.amount().Eq(other.amount())
}

// WithAmount returns a copy of the asset carrying a different amount
func (a Asset) WithAmount(amount *uint256.Int) Asset {
	return Asset{Info: a.Info, Amount: new(uint256.Int).Set(amount)}
}

// Instruction builds the payout of this asset to recipient.
// Native coins become a BankSend, ledger tokens a TokenTransfer.
func (a Asset) Instruction(recipient common.Address) Instruction {
	switch info := a.Info.(type) {
	case NativeToken:
		return BankSend{To: recipient, Denom: info.Denom, Amount: new(uint256.Int).Set(a.amount())}
	case Token:
		return TokenTransfer{Contract: info.Contract, To: recipient, Amount: new(uint256.Int).Set(a.amount())}
	default:
		panic(fmt.Sprintf("asset: unknown info %T", a.Info))
	}
}

// AssertSentNativeAmount checks that the funds attached to an invocation
// carry exactly this asset's amount of its native denom. A missing coin
// only passes when the required amount is zero. Ledger tokens are never
// attached as funds, so the check is a no-op for them.
func (a Asset) AssertSentNativeAmount(funds []Asset) error {
	native, ok := a.Info.(NativeToken)
	if !ok {
		return nil
	}
	for _, coin := range funds {
		c, ok := coin.Info.(NativeToken)
		if !ok || c.Denom != native.Denom {
			continue
		}
		if coin.amount().Eq(a.amount()) {
			return nil
		}
		return fmt.Errorf("%w: native token balance mismatch between the argument and the transferred", ErrInsufficientFunds)
	}
	if a.amount().IsZero() {
		return nil
	}
	return fmt.Errorf("%w: native token balance mismatch between the argument and the transferred", ErrInsufficientFunds)
}

func (a Asset) String() string {
	if a.Info == nil {
		return a.amount().Dec()
	}
	return a.amount().Dec() + a.Info.String()
}

func (a Asset) amount() *uint256.Int {
	if a.Amount == nil {
		return new(uint256.Int)
	}
	return a.Amount
}

// SameInfo compares two denominations
func SameInfo(a, b Info) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// JSON wire form:
//   {"info":{"native_token":{"denom":"uluna"}},"amount":"10000"}
//   {"info":{"token":{"contract_addr":"0x..."}},"amount":"1"}

type infoJSON struct {
	NativeToken *nativeJSON `json:"native_token,omitempty"`
	Token       *tokenJSON  `json:"token,omitempty"`
}

type nativeJSON struct {
	Denom string `json:"denom"`
}

type tokenJSON struct {
	ContractAddr common.Address `json:"contract_addr"`
}

type assetJSON struct {
	Info   infoJSON `json:"info"`
	Amount string   `json:"amount"`
}

func encodeInfo(info Info) (infoJSON, error) {
	switch v := info.(type) {
	case NativeToken:
		return infoJSON{NativeToken: &nativeJSON{Denom: v.Denom}}, nil
	case Token:
		return infoJSON{Token: &tokenJSON{ContractAddr: v.Contract}}, nil
	default:
		return infoJSON{}, fmt.Errorf("asset: cannot encode info %T", info)
	}
}

func decodeInfo(raw infoJSON) (Info, error) {
	switch {
	case raw.NativeToken != nil && raw.Token != nil:
		return nil, errors.New("asset: info must set exactly one of native_token, token")
	case raw.NativeToken != nil:
		if raw.NativeToken.Denom == "" {
			return nil, errors.New("asset: native_token requires a denom")
		}
		return NativeToken{Denom: raw.NativeToken.Denom}, nil
	case raw.Token != nil:
		return Token{Contract: raw.Token.ContractAddr}, nil
	default:
		return nil, errors.New("asset: info must set one of native_token, token")
	}
}

// MarshalJSON encodes the amount as a decimal string
func (a Asset) MarshalJSON() ([]byte, error) {
	info, err := encodeInfo(a.Info)
	if err != nil {
		return nil, err
	}
	return json.Marshal(assetJSON{Info: info, Amount: a.amount().Dec()})
}

// UnmarshalJSON rejects amounts that do not fit 256 bits
func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw assetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	info, err := decodeInfo(raw.Info)
	if err != nil {
		return err
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return err
	}
	a.Info = info
	a.Amount = amount
	return nil
}

// ParseAmount parses a base-10 unsigned 256-bit amount
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("asset: empty amount")
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("asset: invalid amount %q: %w", s, err)
	}
	return amount, nil
}
