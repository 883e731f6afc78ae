package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/logger"
)

var (
	logLevelOverride string

	cfg  *config.Config
	logr *zap.Logger
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hris",
		Short:         "HRIS approval workflow service",
		Long:          `hris serves the HR workflow API and runs its maintenance tasks.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevelOverride != "" {
				loaded.Log.Level = strings.ToLower(logLevelOverride)
			}
			l, err := logger.New(loaded)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			cfg, logr = loaded, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logr != nil {
				_ = logr.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewServeCmd(),
		NewDispatchCmd(),
		NewMigrateCmd(),
		NewSeedCmd(),
		NewVersionCmd(),
	)

	return cmd
}
