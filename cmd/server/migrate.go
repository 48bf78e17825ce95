package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables or indexes and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.ValidateStore(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate store: %w", err)
			}
			logger.Info("Migration complete", zap.String("store", cfg.Bot.Store))
			return nil
		},
	}
}
