package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"card-gateway/logging"
	"card-gateway/mockgateway"
)

func mockGatewayCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mock-gateway",
		Short: "Run a local signed stand-in for the card gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Gateway.Secret == "" {
				return errors.New("gateway.secret is not configured")
			}
			if err := initLogging(cfg); err != nil {
				return err
			}
			defer logging.Sync()

			srv := &http.Server{
				Addr:              addr,
				Handler:           mockgateway.New(cfg.Gateway.Secret),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logging.Info("Mock gateway listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3001", "listen address")
	return cmd
}
