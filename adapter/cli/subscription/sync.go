package subscription

import (
	"fmt"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/spf13/cobra"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync subscription state with the billing backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Entitlements == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription sync requires an initialized store.")
			return nil
		}

		if syncAll {
			if err := app.Entitlements.FlushPendingChanges(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pending changes flushed.")
			return nil
		}

		state, err := app.Entitlements.SyncNow(cmd.Context(), app.CurrentUserID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced: %s\n", state.Status)
		if state.HasUnsyncedLocalChanges {
			fmt.Fprintln(cmd.OutOrStdout(), "Some changes are still pending.")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "flush pending changes for every account")
}
