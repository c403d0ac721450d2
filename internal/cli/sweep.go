package cli

import (
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one bid safety pass over all enabled blockchains",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SweepOnce(cmd.Context())
	},
}
