package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prona-platform/prona/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with API access tokens",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.JWT.AccessSecret) < 32 {
				return errors.New("JWT_ACCESS_SECRET must be at least 32 characters")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			email, _ := cmd.Flags().GetString("email")
			userFlag, _ := cmd.Flags().GetString("user")

			userID := uuid.New()
			if userFlag != "" {
				id, err := uuid.Parse(userFlag)
				if err != nil {
					return fmt.Errorf("--user must be a UUID: %w", err)
				}
				userID = id
			}

			token, err := auth.NewJWTManager(a.cfg.JWT.AccessSecret).IssueAccessToken(userID.String(), email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().String("user", "", "User id; a new one is generated when empty")
	issue.Flags().String("email", "", "Email claim")
	issue.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.AddCommand(issue)

	return cmd
}
