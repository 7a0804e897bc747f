package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/hypermarket/pkg/crypto"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new account key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			out, err := json.Marshal(map[string]string{
				"address":     signer.Address().Hex(),
				"private_key": signer.PrivateKeyHex(), // KEEP SECRET
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
