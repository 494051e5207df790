package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mkrupp/practice-tracker/internal/app"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or reset user accounts",
		Long:  "Create or reset user accounts. Without --user the demo accounts demo1..demo3 are seeded.",
		Args:  cobra.NoArgs,
	}

	cmd.Flags().StringArray("user", nil, "Account as name:password (repeatable)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		specs, _ := cmd.Flags().GetStringArray("user")

		users := app.DefaultSeedUsers()
		if len(specs) > 0 {
			users = users[:0]

			for _, s := range specs {
				su, err := app.ParseSeedUser(s)
				if err != nil {
					return err
				}

				users = append(users, su)
			}
		}

		return withApp(cmd, "seed", func(ctx context.Context, _ app.Config, a *app.App) error {
			if err := a.Migrate(ctx); err != nil {
				return err
			}

			return a.Seed(ctx, users)
		})
	}

	return cmd
}
