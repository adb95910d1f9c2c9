package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prona-platform/prona/internal/nutrition"
)

func newRecomputeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute stored day totals from meal lines",
		Long: "Recompute rebuilds a day's totals from its meals. Use --date for one day " +
			"or --all for every day of the user.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userFlag, _ := cmd.Flags().GetString("user")
			dateFlag, _ := cmd.Flags().GetString("date")
			all, _ := cmd.Flags().GetBool("all")

			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			if all == (dateFlag != "") {
				return errors.New("exactly one of --date or --all is required")
			}
			var date time.Time
			if !all {
				if date, err = time.Parse(time.DateOnly, dateFlag); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			pool, err := a.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			// Events stay off here; the API publishes on its own writes.
			svc := nutrition.NewService(nutrition.NewPostgresStore(pool), nil)

			if all {
				n, err := svc.RecomputeAll(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d days\n", n)
				return nil
			}

			day, err := svc.RecomputeDay(cmd.Context(), userID, date)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), day)
		},
	}

	cmd.Flags().String("user", "", "User id (required)")
	cmd.Flags().String("date", "", "Day to recompute, YYYY-MM-DD")
	cmd.Flags().Bool("all", false, "Recompute every day of the user")
	return cmd
}
