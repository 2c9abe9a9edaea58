package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/presence.report/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "presence %s\n", version.String())
			return err
		},
	}
}
