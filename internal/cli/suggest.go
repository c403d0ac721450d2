package cli

import (
	"github.com/spf13/cobra"

	"bid-risk-alerts/internal/app"
)

var (
	suggestChainID int64
	suggestSize    uint64
	suggestAddress string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest cache bids at high, mid, and low risk tolerance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Suggest(cmd.Context(), app.SuggestOptions{
			ChainID:   suggestChainID,
			SizeBytes: suggestSize,
			Address:   suggestAddress,
		})
	},
}

func init() {
	suggestCmd.Flags().Int64Var(&suggestChainID, "chain", 0, "Numeric chain id of the target blockchain")
	suggestCmd.Flags().Uint64Var(&suggestSize, "size", 0, "Code size in bytes (for not-yet-cached code)")
	suggestCmd.Flags().StringVar(&suggestAddress, "address", "", "Deployed program address")
	_ = suggestCmd.MarkFlagRequired("chain")
}
