package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"card-gateway/gateway"
)

const EnvPrefix = "CARDGW"

// Config holds application configuration
type Config struct {
	ServiceName  string         `mapstructure:"service_name"`
	Port         string         `mapstructure:"port"`
	LogLevel     string         `mapstructure:"log_level"`
	OTELEndpoint string         `mapstructure:"otel_endpoint"`
	Gateway      GatewayConfig  `mapstructure:"gateway"`
	Identity     IdentityConfig `mapstructure:"identity"`
	Store        StoreConfig    `mapstructure:"store"`
	Kafka        KafkaConfig    `mapstructure:"kafka"`
}

type GatewayConfig struct {
	URL             string        `mapstructure:"url"`
	MerchantID      string        `mapstructure:"merchant_id"`
	Secret          string        `mapstructure:"secret"`
	CountryCode     string        `mapstructure:"country_code"`
	DuplicateDelay  int           `mapstructure:"duplicate_delay"`
	CallbackURL     string        `mapstructure:"callback_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SignaturePolicy string        `mapstructure:"signature_policy"`
}

type IdentityConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// BrokerList splits the comma separated broker string.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Merchant returns the constants sent on every gateway request.
func (g GatewayConfig) Merchant() gateway.MerchantSettings {
	return gateway.MerchantSettings{
		MerchantID:     g.MerchantID,
		CountryCode:    g.CountryCode,
		DuplicateDelay: g.DuplicateDelay,
		CallbackURL:    g.CallbackURL,
	}
}

// Policy parses SignaturePolicy; call Validate first.
func (g GatewayConfig) Policy() gateway.SignaturePolicy {
	p, _ := gateway.ParseSignaturePolicy(g.SignaturePolicy)
	return p
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "card-gateway")
	v.SetDefault("port", "8081")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_endpoint", "")

	v.SetDefault("gateway.url", "https://gateway.cardstream.com/direct/")
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.secret", "")
	v.SetDefault("gateway.country_code", "826")
	v.SetDefault("gateway.duplicate_delay", 0)
	v.SetDefault("gateway.callback_url", "")
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("gateway.signature_policy", string(gateway.PolicyAudit))

	v.SetDefault("identity.url", "")
	v.SetDefault("identity.api_key", "")
	v.SetDefault("identity.timeout", 5*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "card-payments")
}

// Load reads defaults, then the optional config file, then CARDGW_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks what the serving path cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required"))
	}
	if c.Gateway.MerchantID == "" {
		errs = append(errs, errors.New("gateway.merchant_id is required"))
	}
	if c.Gateway.Secret == "" {
		errs = append(errs, errors.New("gateway.secret is required"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	if _, err := gateway.ParseSignaturePolicy(c.Gateway.SignaturePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Identity.URL == "" {
		errs = append(errs, errors.New("identity.url is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for "+c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}
