package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"card-gateway/config"
	"card-gateway/logging"
)

var configPath string

func rootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "card-gateway",
		Short:         "Direct card payment gateway adapter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml or json); CARDGW_* env vars override it")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(signCmd())
	cmd.AddCommand(verifyCmd())
	cmd.AddCommand(mockGatewayCmd())
	return cmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute(version string) {
	if err := rootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env if present, then the layered config.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(configPath)
}

func initLogging(cfg *config.Config) error {
	return logging.InitLogger(logging.Options{
		ServiceName:  cfg.ServiceName,
		Level:        cfg.LogLevel,
		OTLPEndpoint: cfg.OTELEndpoint,
	})
}
