package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

// signFlags describe one execute message and its envelope
type signFlags struct {
	key     string
	nonce   uint64
	action  string
	nft     string
	tokenID string
	price   string
	expire  string
	funds   string
	paused  bool
	typed   bool
	submit  bool
}

func newSignCmd(g *globals) *cobra.Command {
	f := &signFlags{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and sign a marketplace transaction",
		Long: `Build an execute message from flags, sign it with the account key and
print the signed transaction JSON. With --submit the transaction is sent
to the node instead.

Examples:
  marketctl sign --action create_order --nft 0xCAFE.. --token-id 1 --price 60000uluna
  marketctl sign --action create_bid --nft 0xCAFE.. --token-id 1 --price 12000uluna --funds 12000uluna
  marketctl sign --action safe_execute_order --nft 0xCAFE.. --token-id 1 --price 500@0xC020..
  marketctl sign --action set_paused --paused`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, g, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.key, "key", "", "Hex private key (default $MARKETCTL_KEY)")
	fl.Uint64Var(&f.nonce, "nonce", 0, "Transaction nonce (0: ask the node for the next one)")
	fl.StringVar(&f.action, "action", "", "One of "+strings.Join(actions, ", "))
	fl.StringVar(&f.nft, "nft", "", "Collection address")
	fl.StringVar(&f.tokenID, "token-id", "", "Asset instance id")
	fl.StringVar(&f.price, "price", "", "Price: <amount><denom> for native coins or <amount>@<token contract>")
	fl.StringVar(&f.expire, "expire", "never", "Expiration: never, height:<n> or time:<unix seconds>")
	fl.StringVar(&f.funds, "funds", "", "Attached native funds, comma separated <amount><denom>")
	fl.BoolVar(&f.paused, "paused", false, "Pause flag for set_paused")
	fl.BoolVar(&f.typed, "typed", false, "Also print the EIP-712 typed data to stderr")
	fl.BoolVar(&f.submit, "submit", false, "Submit to the node instead of printing")
	cmd.MarkFlagRequired("action")
	return cmd
}

var actions = []string{
	market.ActionSetPaused,
	market.ActionCreateOrder,
	market.ActionUpdateOrder,
	market.ActionCancelOrder,
	market.ActionCreateBid,
	market.ActionCancelBid,
	market.ActionSafeExecuteOrder,
	market.ActionAcceptBid,
}

func runSign(cmd *cobra.Command, g *globals, f *signFlags) error {
	keyHex := f.key
	if keyHex == "" {
		keyHex = os.Getenv("MARKETCTL_KEY")
	}
	if keyHex == "" {
		return errors.New("missing --key (or MARKETCTL_KEY)")
	}
	signer, err := crypto.FromPrivateKeyHex(keyHex)
	if err != nil {
		return err
	}

	msg, err := buildMsg(f)
	if err != nil {
		return err
	}
	funds, err := parseFunds(f.funds)
	if err != nil {
		return err
	}

	c := newClient(g.node)
	nonce := f.nonce
	if nonce == 0 {
		last, err := c.nonce(signer.Address().Hex())
		if err != nil {
			return fmt.Errorf("fetch nonce (or pass --nonce): %w", err)
		}
		nonce = last + 1
	}

	tx, err := transaction.Build(signer.Address(), nonce, msg, funds)
	if err != nil {
		return err
	}
	verifier := transaction.NewVerifier(crypto.DefaultDomain(g.chainID))
	if err := verifier.Sign(signer, tx); err != nil {
		return err
	}

	if f.typed {
		typed, err := tx.ToEIP712()
		if err != nil {
			return err
		}
		doc, err := crypto.NewEIP712Signer(verifier.Domain()).MarketTxToJSON(typed)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), doc)
	}

	raw, err := tx.Serialize()
	if err != nil {
		return err
	}
	if f.submit {
		resp, err := c.post("/api/v1/txs", raw)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	}
	return printJSON(cmd.OutOrStdout(), raw)
}

// buildMsg assembles the execute message named by f.action
func buildMsg(f *signFlags) (*market.ExecuteMsg, error) {
	if f.action == market.ActionSetPaused {
		return &market.ExecuteMsg{SetPaused: &market.SetPausedMsg{Paused: f.paused}}, nil
	}

	if !common.IsHexAddress(f.nft) {
		return nil, fmt.Errorf("--nft: invalid collection address %q", f.nft)
	}
	if f.tokenID == "" {
		return nil, errors.New("--token-id is required")
	}
	key := market.Key{Collection: common.HexToAddress(f.nft), Instance: f.tokenID}

	switch f.action {
	case market.ActionCancelOrder:
		return &market.ExecuteMsg{CancelOrder: &market.KeyMsg{Key: key}}, nil
	case market.ActionCancelBid:
		return &market.ExecuteMsg{CancelBid: &market.KeyMsg{Key: key}}, nil
	}

	price, err := parseAsset(f.price)
	if err != nil {
		return nil, fmt.Errorf("--price: %w", err)
	}

	switch f.action {
	case market.ActionSafeExecuteOrder:
		return &market.ExecuteMsg{SafeExecuteOrder: &market.SettleMsg{Key: key, Price: price}}, nil
	case market.ActionAcceptBid:
		return &market.ExecuteMsg{AcceptBid: &market.SettleMsg{Key: key, Price: price}}, nil
	}

	expire, err := parseExpiration(f.expire)
	if err != nil {
		return nil, fmt.Errorf("--expire: %w", err)
	}
	order := &market.OrderMsg{Key: key, Price: price, ExpireAt: expire}

	switch f.action {
	case market.ActionCreateOrder:
		return &market.ExecuteMsg{CreateOrder: order}, nil
	case market.ActionUpdateOrder:
		return &market.ExecuteMsg{UpdateOrder: order}, nil
	case market.ActionCreateBid:
		return &market.ExecuteMsg{CreateBid: order}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", f.action)
	}
}

var coinPattern = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]*)$`)

// parseAsset reads "12000uluna" as a native coin and "500@0x.." as a
// ledger token amount
func parseAsset(s string) (asset.Asset, error) {
	s = strings.TrimSpace(s)
	if amount, contract, ok := strings.Cut(s, "@"); ok {
		if !common.IsHexAddress(contract) {
			return asset.Asset{}, fmt.Errorf("invalid token contract %q", contract)
		}
		n, err := asset.ParseAmount(amount)
		if err != nil {
			return asset.Asset{}, err
		}
		return asset.Asset{Info: asset.Token{Contract: common.HexToAddress(contract)}, Amount: n}, nil
	}

	m := coinPattern.FindStringSubmatch(s)
	if m == nil {
		return asset.Asset{}, fmt.Errorf("invalid amount %q: want <amount><denom> or <amount>@<contract>", s)
	}
	n, err := asset.ParseAmount(m[1])
	if err != nil {
		return asset.Asset{}, err
	}
	return asset.Asset{Info: asset.NativeToken{Denom: m[2]}, Amount: n}, nil
}

func parseFunds(s string) ([]asset.Asset, error) {
	var funds []asset.Asset
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		a, err := parseAsset(part)
		if err != nil {
			return nil, fmt.Errorf("--funds: %w", err)
		}
		if !a.IsNative() {
			return nil, fmt.Errorf("--funds: only native coins can be attached, got %s", part)
		}
		funds = append(funds, a)
	}
	return funds, nil
}

func parseExpiration(s string) (market.Expiration, error) {
	kind, value, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch kind {
	case "", "never":
		return market.Never(), nil
	case "height", "time":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return market.Expiration{}, fmt.Errorf("invalid %s %q", kind, value)
		}
		if kind == "height" {
			return market.AtHeight(n), nil
		}
		return market.AtTime(n), nil
	default:
		return market.Expiration{}, fmt.Errorf("unknown expiration %q", s)
	}
}
