package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"card-gateway/auth"
	"card-gateway/config"
	"card-gateway/events"
	"card-gateway/gateway"
	"card-gateway/guard"
	"card-gateway/ledger"
	"card-gateway/logging"
	"card-gateway/monitoring"
	"card-gateway/server"
	"card-gateway/service"
	"card-gateway/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP authorization service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logging.Sync()
	defer func() {
		if err := logging.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	tp, tracer, err := monitoring.InitTracer(cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	mp, metricsHandler, err := monitoring.InitMeter(cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init meter: %w", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher, err := openPublisher(cfg.Kafka)
	if err != nil {
		return err
	}
	defer publisher.Close()

	payments := service.NewPaymentService(service.Deps{
		Tracer:    tracer,
		Guard:     guard.New(st),
		Ledger:    ledger.New(st),
		Gateway:   gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Timeout),
		Settler:   st,
		Publisher: publisher,
	}, service.Settings{
		Merchant:        cfg.Gateway.Merchant(),
		Secret:          cfg.Gateway.Secret,
		SignaturePolicy: cfg.Gateway.Policy(),
	})

	srv := server.New(server.Options{
		ServiceName:    cfg.ServiceName,
		Port:           cfg.Port,
		Payments:       payments,
		Store:          st,
		Identity:       auth.NewClient(cfg.Identity.URL, cfg.Identity.APIKey, cfg.Identity.Timeout),
		MetricsHandler: metricsHandler,
	})

	logging.Info("Card gateway configured",
		zap.String("merchant_id", cfg.Gateway.MerchantID),
		zap.String("signature_policy", string(cfg.Gateway.Policy())),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Duration("gateway_timeout", cfg.Gateway.Timeout),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "memory" {
		logging.Warn("Using in-memory store; ledger records are lost on restart")
		return store.NewMemory(), nil
	}
	st, err := store.OpenSQL(store.SQLOptions{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func openPublisher(cfg config.KafkaConfig) (events.Publisher, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return events.Nop{}, nil
	}
	pub, err := events.NewKafka(brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	logging.Info("Publishing payment events", zap.Strings("brokers", brokers), zap.String("topic", cfg.Topic))
	return pub, nil
}
