package main

import (
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func newQueryCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read marketplace and ledger state from the node",
	}

	assetPath := func(prefix string) func(args []string) (string, error) {
		return func(args []string) (string, error) {
			if !common.IsHexAddress(args[0]) {
				return "", fmt.Errorf("invalid collection address %q", args[0])
			}
			return fmt.Sprintf(prefix, common.HexToAddress(args[0]).Hex(), url.PathEscape(args[1])), nil
		}
	}
	accountPath := func(format string) func(args []string) (string, error) {
		return func(args []string) (string, error) {
			if !common.IsHexAddress(args[0]) {
				return "", fmt.Errorf("invalid address %q", args[0])
			}
			return fmt.Sprintf(format, common.HexToAddress(args[0]).Hex()), nil
		}
	}
	static := func(path string) func([]string) (string, error) {
		return func([]string) (string, error) { return path, nil }
	}

	cmd.AddCommand(
		queryCmd(g, "order <nft_address> <token_id>", "Show the order on an asset", 2, assetPath("/api/v1/orders/%s/%s")),
		queryCmd(g, "bid <nft_address> <token_id>", "Show the bid on an asset", 2, assetPath("/api/v1/bids/%s/%s")),
		queryCmd(g, "owner <nft_address> <token_id>", "Show the ledger owner of an asset", 2, assetPath("/api/v1/assets/%s/%s/owner")),
		queryCmd(g, "sales <nft_address> <token_id>", "List recent settlements of an asset", 2, assetPath("/api/v1/assets/%s/%s/sales")),
		queryCmd(g, "balances <address>", "List the balances of an account", 1, accountPath("/api/v1/accounts/%s/balances")),
		queryCmd(g, "nonce <address>", "Show the last nonce accepted from an account", 1, accountPath("/api/v1/accounts/%s/nonce")),
		queryCmd(g, "version", "Show the marketplace version", 0, static("/api/v1/version")),
		queryCmd(g, "config", "Show the marketplace config", 0, static("/api/v1/config")),
		queryCmd(g, "status", "Show chain status", 0, static("/api/v1/chain/status")),
	)
	return cmd
}

// queryCmd builds a subcommand that GETs the path built from its args
func queryCmd(g *globals, use, short string, nargs int, path func(args []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := path(args)
			if err != nil {
				return err
			}
			body, err := newClient(g.node).get(p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}
