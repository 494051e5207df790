package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mkrupp/practice-tracker/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "migrate", func(ctx context.Context, _ app.Config, a *app.App) error {
				return a.Migrate(ctx)
			})
		},
	}
}
