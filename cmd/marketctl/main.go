// Command marketctl builds, signs and submits marketplace transactions
// and queries a node's REST API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// globals are the persistent flags shared by every subcommand
type globals struct {
	node    string
	chainID int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "marketctl",
		Short: "Client for the hypermarket NFT settlement chain",
		Long: `marketctl generates account keys, builds and signs marketplace
transactions under the chain's EIP-712 domain, submits them to a node and
reads marketplace and ledger state from the node's REST API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.node, "node", "http://localhost:8080", "Node API base URL")
	root.PersistentFlags().Int64Var(&g.chainID, "chain-id", 1337, "EIP-712 signing domain chain id")

	root.AddCommand(
		newKeygenCmd(),
		newSignCmd(g),
		newSubmitCmd(g),
		newQueryCmd(g),
	)
	return root
}
