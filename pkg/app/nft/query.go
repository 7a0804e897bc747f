package nft

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/ledger"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

// Queries read committed state only

func (a *App) QueryOrder(key market.Key) (*market.Order, error) {
	return market.QueryOrder(storage.NewMarketStore(a.db), key)
}

func (a *App) QueryBid(key market.Key) (*market.Bid, error) {
	return market.QueryBid(storage.NewMarketStore(a.db), key)
}

func (a *App) QueryConfig() (*market.Config, error) {
	return storage.NewMarketStore(a.db).GetConfig()
}

func (a *App) QueryPaused() (bool, error) {
	return storage.NewMarketStore(a.db).Paused()
}

// QuerySales returns up to limit settlements of key, newest first
func (a *App) QuerySales(key market.Key, limit int) ([]*market.Sale, error) {
	return storage.NewMarketStore(a.db).RecentSales(key, limit)
}

func (a *App) QueryOwner(key market.Key) (common.Address, error) {
	return ledger.New(a.db).OwnerOf(key)
}

func (a *App) QueryBalance(addr common.Address, info asset.Info) (*uint256.Int, error) {
	return ledger.New(a.db).Balance(addr, info)
}

func (a *App) QueryBalances(addr common.Address) (map[string]*uint256.Int, error) {
	return ledger.New(a.db).Balances(addr)
}

func (a *App) QueryNonce(addr common.Address) (uint64, error) {
	return ledger.New(a.db).Nonce(addr)
}

// ChainID of the signing domain
func (a *App) ChainID() *big.Int {
	id := a.verifier.Domain().ChainID
	if id == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(id)
}
