package subscription

import (
	"fmt"

	"github.com/medfolio/medfolio/internal/entitlement/domain"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List available plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		plans := domain.Plans()
		fmt.Fprintf(cmd.OutOrStdout(), "Plans (%d):\n", len(plans))
		for _, plan := range plans {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s $%d.%02d/%s\n",
				plan.ID, plan.Name, plan.PriceCents/100, plan.PriceCents%100, plan.Interval)
		}
		return nil
	},
}
