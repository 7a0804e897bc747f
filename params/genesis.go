package params

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/nft"
)

// GenesisFile is the on-disk genesis document
//
//	owner = "0x..."
//	accepted_token = "0x..."
//	owner_cut_rate = "0.025"
//
//	[[balances]]
//	address = "0x..."
//	denom = "uluna"        # or token = "0x<contract>"
//	amount = "50000"
//
//	[[assets]]
//	nft_address = "0x..."
//	token_id = "1"
//	owner = "0x..."
type GenesisFile struct {
	Owner         string           `toml:"owner"`
	AcceptedToken string           `toml:"accepted_token"`
	OwnerCutRate  string           `toml:"owner_cut_rate"`
	Balances      []GenesisBalance `toml:"balances"`
	Assets        []GenesisAsset   `toml:"assets"`
}

type GenesisBalance struct {
	Address string `toml:"address"`
	Denom   string `toml:"denom"`
	Token   string `toml:"token"`
	Amount  string `toml:"amount"`
}

type GenesisAsset struct {
	Collection string `toml:"nft_address"`
	Instance   string `toml:"token_id"`
	Owner      string `toml:"owner"`
}

// LoadGenesis reads and converts the genesis file at path
func LoadGenesis(path string) (nft.Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nft.Genesis{}, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes a TOML genesis document. Unknown keys are
// rejected so a typo cannot silently drop an allocation.
func ParseGenesis(data []byte) (nft.Genesis, error) {
	var file GenesisFile
	meta, err := toml.Decode(string(data), &file)
	if err != nil {
		return nft.Genesis{}, fmt.Errorf("decode genesis: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nft.Genesis{}, fmt.Errorf("genesis: unknown key %q", undecoded[0].String())
	}
	return file.Genesis()
}

// Genesis validates the document and converts it for the app
func (f GenesisFile) Genesis() (nft.Genesis, error) {
	var g nft.Genesis
	var err error

	if g.Owner, err = address("owner", f.Owner); err != nil {
		return g, err
	}
	if f.AcceptedToken != "" {
		if g.AcceptedToken, err = address("accepted_token", f.AcceptedToken); err != nil {
			return g, err
		}
	}
	if f.OwnerCutRate == "" {
		return g, errors.New("genesis: owner_cut_rate is required")
	}
	if g.OwnerCutRate, err = decimal.NewFromString(f.OwnerCutRate); err != nil {
		return g, fmt.Errorf("genesis: owner_cut_rate: %w", err)
	}

	for i, b := range f.Balances {
		addr, err := address(fmt.Sprintf("balances[%d].address", i), b.Address)
		if err != nil {
			return g, err
		}
		amount, err := asset.ParseAmount(b.Amount)
		if err != nil {
			return g, fmt.Errorf("genesis: balances[%d].amount: %w", i, err)
		}
		var info asset.Info
		switch {
		case b.Denom != "" && b.Token == "":
			info = asset.NativeToken{Denom: b.Denom}
		case b.Token != "" && b.Denom == "":
			contract, err := address(fmt.Sprintf("balances[%d].token", i), b.Token)
			if err != nil {
				return g, err
			}
			info = asset.Token{Contract: contract}
		default:
			return g, fmt.Errorf("genesis: balances[%d] needs exactly one of denom or token", i)
		}
		g.Balances = append(g.Balances, nft.GenesisBalance{
			Address: addr,
			Amount:  asset.Asset{Info: info, Amount: amount},
		})
	}

	for i, a := range f.Assets {
		collection, err := address(fmt.Sprintf("assets[%d].nft_address", i), a.Collection)
		if err != nil {
			return g, err
		}
		owner, err := address(fmt.Sprintf("assets[%d].owner", i), a.Owner)
		if err != nil {
			return g, err
		}
		if a.Instance == "" {
			return g, fmt.Errorf("genesis: assets[%d].token_id is required", i)
		}
		g.Assets = append(g.Assets, nft.GenesisAsset{
			Key:   market.Key{Collection: collection, Instance: a.Instance},
			Owner: owner,
		})
	}
	return g, nil
}

func address(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("genesis: %s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
