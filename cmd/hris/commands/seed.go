package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/seed"
	"github.com/noah-isme/hris-api/pkg/database"
)

func NewSeedCmd() *cobra.Command {
	var (
		file    string
		noAdmin bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load benefit types, document templates and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			catalog, err := seed.Load(file)
			if err != nil {
				return err
			}
			if noAdmin {
				catalog.Admin = nil
			}

			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			res, err := seed.Apply(ctx, catalog, seed.Stores{
				BenefitTypes: repository.NewBenefitRepository(db),
				Templates:    repository.NewDocumentTemplateRepository(db),
				Users:        repository.NewUserRepository(db),
			}, logr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d benefit types, %d templates (admin: %t)\n", res.BenefitTypes, res.Templates, res.Admin)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to load instead of the built-in one")
	cmd.Flags().BoolVar(&noAdmin, "no-admin", false, "Skip creating the bootstrap administrator")
	return cmd
}
