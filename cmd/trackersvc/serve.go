package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/practice-tracker/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the schema and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, "serve", func(ctx context.Context, cfg app.Config, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}

				if err := a.Serve(ctx, cfg.HTTP); err != nil {
					return fmt.Errorf("listen and serve: %w", err)
				}

				return nil
			})
		},
	}
}
