package subscription

import (
	"fmt"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Entitlements == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription cancel requires an initialized store.")
			return nil
		}

		state, err := app.Entitlements.CancelSubscription(cmd.Context(), app.CurrentUserID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNetwork && state != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Offline: cancellation saved locally and will sync when connectivity returns.")
				return nil
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Subscription cancelled.")
		if state.CurrentPlan != nil && state.NextBillingDate != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Access to %s continues until %s.\n",
				state.CurrentPlan.Name, state.NextBillingDate.Local().Format("Jan 2, 2006"))
		}
		return nil
	},
}
