package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/migrations"
	"github.com/noah-isme/hris-api/pkg/database"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			ran, err := database.Migrate(ctx, db, migrations.FS)
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				logr.Info("schema up to date")
				return nil
			}
			logr.Info("migrations applied", zap.Strings("versions", ran))
			return nil
		},
	}
}
