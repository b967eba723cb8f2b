package subscription

import (
	"fmt"
	"time"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/medfolio/medfolio/internal/entitlement/application"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/spf13/cobra"
)

var (
	updatePlanID      string
	updateStatus      string
	updateBillingDate string
	updateTrial       bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Entitlements == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Subscription update requires an initialized store.")
			return nil
		}

		var payload application.UpdatePayload
		if cmd.Flags().Changed("plan") {
			payload.PlanID = &updatePlanID
		}
		if cmd.Flags().Changed("status") {
			status := domain.Status(updateStatus)
			payload.Status = &status
		}
		if cmd.Flags().Changed("renews") {
			t, err := time.Parse(time.RFC3339, updateBillingDate)
			if err != nil {
				return fmt.Errorf("invalid --renews value, expected RFC3339: %w", err)
			}
			payload.NextBillingDate = &t
		}
		if cmd.Flags().Changed("trial") {
			payload.Trial = &updateTrial
		}

		state, err := app.Entitlements.UpdateSubscription(cmd.Context(), app.CurrentUserID, payload)
		if err != nil {
			if domain.KindOf(err) == domain.KindNetwork && state != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Offline: change saved locally and will sync when connectivity returns.")
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Subscription updated: %s\n", state.Status)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updatePlanID, "plan", "", "plan ID (see 'subscription plans')")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "subscription status")
	updateCmd.Flags().StringVar(&updateBillingDate, "renews", "", "next billing date (RFC3339)")
	updateCmd.Flags().BoolVar(&updateTrial, "trial", false, "trial flag")
}
