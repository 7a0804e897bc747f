package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// Version is reported by the version query
const Version = "1.72"

// MinOrderLifetime is how far in the future (seconds) a time-bound order
// expiration must be when it is created or updated
const MinOrderLifetime = 60

// CutRateCeiling is the highest owner cut rate a Config accepts (10%)
var CutRateCeiling = decimal.New(1, -1)

// Key identifies a non-fungible asset: its collection and instance id
type Key struct {
	Collection common.Address `json:"nft_address"`
	Instance   string         `json:"token_id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Collection.Hex(), k.Instance)
}

// Order is a fixed-price listing of an asset by its owner.
// At most one Order exists per Key.
type Order struct {
	Key
	Seller   common.Address `json:"seller"`
	Price    asset.Asset    `json:"price"`
	ExpireAt Expiration     `json:"expire_at"`
}

// Bid is an escrowed offer on a listed asset.
// At most one Bid exists per Key; Seller is copied from the Order.
type Bid struct {
	Key
	Seller   common.Address `json:"seller"`
	Bidder   common.Address `json:"bidder"`
	Price    asset.Asset    `json:"price"`
	ExpireAt Expiration     `json:"expire_at"`
}

// Config is the marketplace singleton
type Config struct {
	Owner           common.Address  `json:"owner"`
	AcceptedToken   common.Address  `json:"accepted_token"`
	OwnerCutRate    decimal.Decimal `json:"owner_cut_rate"`
	OwnerCutRateMax decimal.Decimal `json:"owner_cut_rate_max"`
}

// NewConfig validates the cut rate against CutRateCeiling
func NewConfig(owner, acceptedToken common.Address, cutRate decimal.Decimal) (*Config, error) {
	if cutRate.IsNegative() || cutRate.GreaterThan(CutRateCeiling) {
		return nil, fmt.Errorf("%w: %s exceeds [0, %s]", ErrInvalidCutRate, cutRate, CutRateCeiling)
	}
	return &Config{
		Owner:           owner,
		AcceptedToken:   acceptedToken,
		OwnerCutRate:    cutRate,
		OwnerCutRateMax: CutRateCeiling,
	}, nil
}

// SaleKind distinguishes how a settlement happened
type SaleKind string

const (
	SaleDirect SaleKind = "direct" // Buyer paid the order price
	SaleBid    SaleKind = "bid"    // Seller accepted the standing bid
)

// Sale records a completed settlement
type Sale struct {
	Key
	Seller common.Address `json:"seller"`
	Buyer  common.Address `json:"buyer"`
	Price  asset.Asset    `json:"price"`
	Fee    asset.Asset    `json:"fee"`
	Height uint64         `json:"height"`
	Time   uint64         `json:"time"`
	Kind   SaleKind       `json:"kind"`
}

// Env is the block context of an invocation
type Env struct {
	Height uint64
	Time   uint64 // Unix seconds
}

// Info is the caller context of an invocation
type Info struct {
	Sender common.Address
	Funds  []asset.Asset
}

// Attribute is a flat key/value emitted with a response
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the outcome of a successful operation: transfer
// instructions the host executes in order, plus attributes.
type Response struct {
	Instructions []asset.Instruction `json:"instructions"`
	Attributes   []Attribute         `json:"attributes"`
}

// NewResponse returns an empty response
func NewResponse() *Response {
	return &Response{}
}

// AddInstruction appends a transfer instruction
func (r *Response) AddInstruction(ins asset.Instruction) *Response {
	r.Instructions = append(r.Instructions, ins)
	return r
}

// AddInstructions appends transfer instructions in order
func (r *Response) AddInstructions(ins ...asset.Instruction) *Response {
	r.Instructions = append(r.Instructions, ins...)
	return r
}

// AddAttribute appends a key/value attribute
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Attribute returns the first value recorded under key
func (r *Response) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
