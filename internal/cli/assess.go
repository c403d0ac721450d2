package cli

import (
	"github.com/spf13/cobra"

	"bid-risk-alerts/internal/app"
)

var (
	assessChainID   int64
	assessAddresses []string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess eviction risk for cached contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Assess(cmd.Context(), app.AssessOptions{
			ChainID:   assessChainID,
			Addresses: assessAddresses,
		})
	},
}

func init() {
	assessCmd.Flags().Int64Var(&assessChainID, "chain", 0, "Numeric chain id of the target blockchain")
	assessCmd.Flags().StringArrayVar(&assessAddresses, "address", nil, "Contract address to assess (repeatable)")
	_ = assessCmd.MarkFlagRequired("chain")
	_ = assessCmd.MarkFlagRequired("address")
}
