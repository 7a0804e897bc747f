package market

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
)

// memStore keeps JSON-encoded records so reads never alias writes
type memStore struct {
	orders map[Key][]byte
	bids   map[Key][]byte
	config []byte
	paused bool
	sales  []Sale
}

func newMemStore() *memStore {
	return &memStore{orders: map[Key][]byte{}, bids: map[Key][]byte{}}
}

func (m *memStore) GetOrder(key Key) (*Order, bool, error) {
	raw, ok := m.orders[key]
	if !ok {
		return nil, false, nil
	}
	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false, err
	}
	return &o, true, nil
}

func (m *memStore) SetOrder(o *Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	m.orders[o.Key] = raw
	return nil
}

func (m *memStore) DeleteOrder(key Key) error {
	delete(m.orders, key)
	return nil
}

func (m *memStore) GetBid(key Key) (*Bid, bool, error) {
	raw, ok := m.bids[key]
	if !ok {
		return nil, false, nil
	}
	var b Bid
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, false, err
	}
	return &b, true, nil
}

func (m *memStore) SetBid(b *Bid) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	m.bids[b.Key] = raw
	return nil
}

func (m *memStore) DeleteBid(key Key) error {
	delete(m.bids, key)
	return nil
}

func (m *memStore) GetConfig() (*Config, error) {
	if m.config == nil {
		return nil, fmt.Errorf("config not found")
	}
	var c Config
	if err := json.Unmarshal(m.config, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *memStore) SetConfig(c *Config) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.config = raw
	return nil
}

func (m *memStore) Paused() (bool, error)  { return m.paused, nil }
func (m *memStore) SetPaused(p bool) error { m.paused = p; return nil }
func (m *memStore) AddSale(s *Sale) error  { m.sales = append(m.sales, *s); return nil }

// snapshot renders the store deterministically for no-mutation checks
func (m *memStore) snapshot() string {
	var out []string
	for k, v := range m.orders {
		out = append(out, "order "+k.String()+" "+string(v))
	}
	for k, v := range m.bids {
		out = append(out, "bid "+k.String()+" "+string(v))
	}
	sort.Strings(out)
	return fmt.Sprintf("%v|%s|%v|%d", out, m.config, m.paused, len(m.sales))
}

type registry map[Key]common.Address

func (r registry) OwnerOf(key Key) (common.Address, error) {
	owner, ok := r[key]
	if !ok {
		return common.Address{}, fmt.Errorf("no owner for %s", key)
	}
	return owner, nil
}

const (
	testNow    = uint64(1_700_000_000)
	testHeight = uint64(100)
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	seller  = common.HexToAddress("0x0000000000000000000000000000000000000005")
	bidder1 = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bidder2 = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	buyer   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	nft     = common.HexToAddress("0x000000000000000000000000000000000000cafe")
	cw20    = common.HexToAddress("0x000000000000000000000000000000000000c020")

	testKey = Key{Collection: nft, Instance: "1"}
)

type fixture struct {
	store *memStore
	reg   registry
	deps  Deps
	env   Env
}

func newFixture(t *testing.T, cutRate string) *fixture {
	t.Helper()
	store := newMemStore()
	reg := registry{testKey: seller}
	_, err := Instantiate(store, Info{Sender: owner}, InstantiateMsg{
		AcceptedToken: cw20,
		OwnerCutRate:  decimal.RequireFromString(cutRate),
	})
	require.NoError(t, err)
	return &fixture{
		store: store,
		reg:   reg,
		deps:  Deps{Store: store, Registry: reg},
		env:   Env{Height: testHeight, Time: testNow},
	}
}

func uluna(amount uint64) asset.Asset { return asset.Native("uluna", amount) }

func funds(a asset.Asset) []asset.Asset { return []asset.Asset{a} }

func (f *fixture) list(t *testing.T, price uint64, exp Expiration) {
	t.Helper()
	_, err := CreateOrder(f.deps, f.env, Info{Sender: seller}, OrderMsg{Key: testKey, Price: uluna(price), ExpireAt: exp})
	require.NoError(t, err)
}

func (f *fixture) bid(t *testing.T, from common.Address, price uint64, exp Expiration) *Response {
	t.Helper()
	res, err := CreateBid(f.deps, f.env, Info{Sender: from, Funds: funds(uluna(price))},
		OrderMsg{Key: testKey, Price: uluna(price), ExpireAt: exp})
	require.NoError(t, err)
	return res
}

func bankSend(to common.Address, amount uint64) asset.Instruction {
	return uluna(amount).Instruction(to)
}

func nftTo(to common.Address) asset.Instruction {
	return asset.NFTTransfer{Collection: nft, Instance: "1", To: to}
}

// requireInstructions compares by the wire encoding, which covers amounts
func requireInstructions(t *testing.T, want []asset.Instruction, got []asset.Instruction) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
}
