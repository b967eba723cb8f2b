package subscription

import "github.com/spf13/cobra"

// Cmd is the subscription command group.
var Cmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage the premium subscription",
	Long:  `Inspect and change the entitlement that gates premium features.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(plansCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(renewCmd)
	Cmd.AddCommand(syncCmd)
}
