package market

import (
	"github.com/ethereum/go-ethereum/common"
)

// Store is the persistent state handle threaded through every operation.
// Implementations are expected to be scoped to a single invocation (a
// batch that the host commits on success and discards on error), so the
// engine never needs to undo its own writes.
//
// Getters report absence with found=false rather than an error.
type Store interface {
	GetOrder(key Key) (order *Order, found bool, err error)
	SetOrder(order *Order) error
	DeleteOrder(key Key) error

	GetBid(key Key) (bid *Bid, found bool, err error)
	SetBid(bid *Bid) error
	DeleteBid(key Key) error

	GetConfig() (*Config, error)
	SetConfig(cfg *Config) error

	Paused() (bool, error)
	SetPaused(paused bool) error

	AddSale(sale *Sale) error
}

// OwnershipRegistry answers who currently owns a non-fungible asset
type OwnershipRegistry interface {
	OwnerOf(key Key) (common.Address, error)
}

// Deps bundles the handles an operation reads and writes
type Deps struct {
	Store    Store
	Registry OwnershipRegistry
}
