package cli

import (
	"github.com/spf13/cobra"

	"bid-risk-alerts/internal/app"
)

var (
	triggerChainID int64
	triggerEventID string
)

var triggerEventCmd = &cobra.Command{
	Use:   "trigger-event",
	Short: "Replay a persisted chain event through the alert processor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TriggerEvent(cmd.Context(), app.TriggerEventOptions{
			ChainID: triggerChainID,
			EventID: triggerEventID,
		})
	},
}

func init() {
	triggerEventCmd.Flags().Int64Var(&triggerChainID, "chain", 0, "Numeric chain id of the target blockchain")
	triggerEventCmd.Flags().StringVar(&triggerEventID, "event-id", "", "Identifier of the persisted event")
	_ = triggerEventCmd.MarkFlagRequired("chain")
	_ = triggerEventCmd.MarkFlagRequired("event-id")
}
