package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// Key schema for Pebble storage
// Prefixes are disjoint so consensus and application keys never collide:
//
// Consensus keys:
//   b:<hash>     → Block
//   c:<height>   → Certificate
//   cm           → Committed hash
//
// Marketplace keys:
//   cfg                                   → Config
//   paused                                → pause flag
//   ord:<collection>:<instance>           → Order
//   bid:<collection>:<instance>           → Bid
//   sale:<collection>:<instance>:<height>:<seq> → Sale
//   salen                                 → sale sequence counter
//
// Ledger keys:
//   bal:<address>:<denom key>   → balance (decimal string)
//   own:<collection>:<instance> → asset owner
//   nonce:<address>             → account nonce
//   meta:height                 → last executed height
//   meta:apphash                → app hash after that height

const (
	prefixOrder   = "ord:"
	prefixBid     = "bid:"
	prefixSale    = "sale:"
	prefixBalance = "bal:"
	prefixOwner   = "own:"
	prefixNonce   = "nonce:"
)

var (
	keyConfig     = []byte("cfg")
	keyPaused     = []byte("paused")
	keySaleSeq    = []byte("salen")
	keyLastHeight = []byte("meta:height")
	keyAppHash    = []byte("meta:apphash")
)

// assetSuffix renders "{collection}:{instance}"
func assetSuffix(k market.Key) string {
	return fmt.Sprintf("%s:%s", k.Collection.Hex(), k.Instance)
}

// orderKey returns the key for an order
// Format: "ord:{collection}:{instance}"
func orderKey(k market.Key) []byte {
	return []byte(prefixOrder + assetSuffix(k))
}

// bidKey returns the key for a bid
// Format: "bid:{collection}:{instance}"
func bidKey(k market.Key) []byte {
	return []byte(prefixBid + assetSuffix(k))
}

// saleKey returns the key for a sale
// Height and sequence are zero-padded (20 digits) for lexicographic sorting
func saleKey(k market.Key, height, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixSale, assetSuffix(k), height, seq))
}

// salePrefix returns the prefix for all sales of an asset
// Format: "sale:{collection}:{instance}:"
func salePrefix(k market.Key) []byte {
	return []byte(prefixSale + assetSuffix(k) + ":")
}

// balanceKey returns the key for a balance
// Format: "bal:{address}:{denom key}"
func balanceKey(addr common.Address, denomKey string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, addr.Hex(), denomKey))
}

// balancePrefix returns the prefix for all balances of an account
func balancePrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixBalance, addr.Hex()))
}

// ownerKey returns the key for an asset owner
// Format: "own:{collection}:{instance}"
func ownerKey(k market.Key) []byte {
	return []byte(prefixOwner + assetSuffix(k))
}

// nonceKey returns the key for an account nonce
// Format: "nonce:{address}"
func nonceKey(addr common.Address) []byte {
	return []byte(prefixNonce + addr.Hex())
}
