package cli

import (
	"github.com/spf13/cobra"

	"bid-risk-alerts/internal/app"
)

var (
	projectChainID int64
	projectAddress string
	projectHours   int
	projectPNGPath string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Render a decay projection chart for a cached contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Project(cmd.Context(), app.ProjectOptions{
			ChainID: projectChainID,
			Address: projectAddress,
			Hours:   projectHours,
			PNGPath: projectPNGPath,
		})
	},
}

func init() {
	projectCmd.Flags().Int64Var(&projectChainID, "chain", 0, "Numeric chain id of the target blockchain")
	projectCmd.Flags().StringVar(&projectAddress, "address", "", "Contract address to project")
	projectCmd.Flags().IntVar(&projectHours, "hours", 24, "Projection horizon in hours")
	projectCmd.Flags().StringVar(&projectPNGPath, "png", "", "Path to write the PNG chart")
	_ = projectCmd.MarkFlagRequired("chain")
	_ = projectCmd.MarkFlagRequired("address")
	_ = projectCmd.MarkFlagRequired("png")
}
