package subscription

import (
	"fmt"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/spf13/cobra"
)

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Renew the subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Entitlements == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription renew requires an initialized store.")
			return nil
		}

		state, err := app.Entitlements.RenewSubscription(cmd.Context(), app.CurrentUserID)
		if err != nil {
			if domain.KindOf(err) == domain.KindNetwork && state != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Offline: renewal saved locally and will sync when connectivity returns.")
				return nil
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Subscription renewed.")
		if state.NextBillingDate != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Next billing date: %s\n",
				state.NextBillingDate.Local().Format("Jan 2, 2006"))
		}
		return nil
	},
}
