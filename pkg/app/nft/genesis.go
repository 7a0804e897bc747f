package nft

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/ledger"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

// Genesis is the initial chain state
type Genesis struct {
	Owner         common.Address
	AcceptedToken common.Address
	OwnerCutRate  decimal.Decimal
	Balances      []GenesisBalance
	Assets        []GenesisAsset
}

// GenesisBalance credits an account at genesis
type GenesisBalance struct {
	Address common.Address
	Amount  asset.Asset
}

// GenesisAsset mints a non-fungible asset to its first owner
type GenesisAsset struct {
	Key   market.Key
	Owner common.Address
}

// InitChain instantiates the marketplace and seeds the ledger. It is a
// no-op on a store that already holds a config.
func (a *App) InitChain(g Genesis) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := storage.NewMarketStore(a.db).GetConfig(); err == nil {
		a.logger.Infow("genesis_skipped", "reason", "already_initialized", "height", a.height)
		return nil
	}

	batch := a.db.Begin()
	defer batch.Discard()

	if _, err := market.Instantiate(storage.NewMarketStore(batch), market.Info{Sender: g.Owner}, market.InstantiateMsg{
		AcceptedToken: g.AcceptedToken,
		OwnerCutRate:  g.OwnerCutRate,
	}); err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	l := ledger.New(batch)
	for _, b := range g.Balances {
		if err := l.Mint(b.Address, b.Amount); err != nil {
			return fmt.Errorf("genesis balance %s: %w", b.Address.Hex(), err)
		}
	}
	for _, as := range g.Assets {
		if err := l.MintAsset(as.Key, as.Owner); err != nil {
			return fmt.Errorf("genesis asset %s: %w", as.Key, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	a.logger.Infow("genesis_applied",
		"owner", g.Owner.Hex(),
		"owner_cut_rate", g.OwnerCutRate.String(),
		"balances", len(g.Balances),
		"assets", len(g.Assets),
	)
	return nil
}
