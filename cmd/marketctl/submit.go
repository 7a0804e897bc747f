package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newSubmitCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [file|-]",
		Short: "Submit a signed transaction to the node",
		Long:  "Submit reads a signed transaction produced by `marketctl sign` from a file, or stdin when the argument is - or absent.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			resp, err := newClient(g.node).post("/api/v1/txs", raw)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}
