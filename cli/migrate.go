package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"card-gateway/logging"
	"card-gateway/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the orders, ledger and settlement tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := initLogging(cfg); err != nil {
				return err
			}
			defer logging.Sync()

			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("migrate needs store.driver mysql or postgres")
			}
			st, err := store.OpenSQL(store.SQLOptions{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logging.Info("Schema migrated", zap.String("driver", cfg.Store.Driver))
			return nil
		},
	}
}
