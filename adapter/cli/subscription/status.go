package subscription

import (
	"fmt"
	"time"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show subscription status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Entitlements == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription status requires an initialized store.")
			return nil
		}

		result, err := app.Entitlements.CheckSubscriptionStatus(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}

		state := result.State
		statusLine := string(state.Status)
		if state.CurrentPlan != nil {
			statusLine = fmt.Sprintf("%s (%s)", state.CurrentPlan.Name, statusLine)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Subscription: %s\n", statusLine)

		if state.Trial {
			fmt.Fprintln(cmd.OutOrStdout(), "Trial period")
		}
		if state.NextBillingDate != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Renews: %s\n", state.NextBillingDate.Local().Format(time.RFC1123))
		}
		if state.LastSyncedAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Last synced: %s\n", state.LastSyncedAt.Local().Format(time.RFC1123))
		}
		if state.HasUnsyncedLocalChanges {
			fmt.Fprintln(cmd.OutOrStdout(), "Pending changes await sync.")
		}
		if state.LastError != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s (%s)\n", state.LastError.Message, state.LastError.Kind)
		}

		return nil
	},
}
