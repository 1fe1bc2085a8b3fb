package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PaymentsConfig is the operator-tunable payments policy. It is read from
// payments.yml and may be reloaded while the service is running.
type PaymentsConfig struct {
	Currency   string           `mapstructure:"currency"`
	Gateways   GatewayToggles   `mapstructure:"gateways"`
	StatusPoll StatusPollPolicy `mapstructure:"statusPoll"`
}

type GatewayToggles struct {
	Mpesa    bool `mapstructure:"mpesa"`
	Paystack bool `mapstructure:"paystack"`
}

// StatusPollPolicy is advertised to clients on status responses so the
// polling cadence can be tuned without redeploying the frontend.
type StatusPollPolicy struct {
	IntervalSeconds int `mapstructure:"intervalSeconds"`
	MaxAttempts     int `mapstructure:"maxAttempts"`
}

func DefaultPaymentsConfig() PaymentsConfig {
	return PaymentsConfig{
		Currency: "KES",
		Gateways: GatewayToggles{Mpesa: true, Paystack: true},
		StatusPoll: StatusPollPolicy{
			IntervalSeconds: 3,
			MaxAttempts:     40,
		},
	}
}

// PaymentsConfigHolder holds the current PaymentsConfig behind an atomic
// swap so readers never block on a reload.
type PaymentsConfigHolder struct {
	current atomic.Value // holds PaymentsConfig
}

func NewPaymentsConfigHolder() (*PaymentsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("payments")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tikiti/config")
	v.AddConfigPath("/etc/tikiti")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TIKITI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPaymentsConfig()
		v.SetDefault("payments.currency", defaults.Currency)
		v.SetDefault("payments.gateways.mpesa", defaults.Gateways.Mpesa)
		v.SetDefault("payments.gateways.paystack", defaults.Gateways.Paystack)
		v.SetDefault("payments.statusPoll.intervalSeconds", defaults.StatusPoll.IntervalSeconds)
		v.SetDefault("payments.statusPoll.maxAttempts", defaults.StatusPoll.MaxAttempts)
	}

	var cfg PaymentsConfig
	if err := v.UnmarshalKey("payments", &cfg); err != nil {
		return nil, err
	}
	if err := validatePaymentsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PaymentsConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PaymentsConfig
		if err := v.UnmarshalKey("payments", &updated); err != nil {
			log.Printf("[payments-config] reload failed: %v", err)
			return
		}
		if err := validatePaymentsConfig(updated); err != nil {
			log.Printf("[payments-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payments-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PaymentsConfigHolder) Get() PaymentsConfig {
	return h.current.Load().(PaymentsConfig)
}

func validatePaymentsConfig(cfg PaymentsConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("payments.currency cannot be empty")
	}
	if !cfg.Gateways.Mpesa && !cfg.Gateways.Paystack {
		return errors.New("payments.gateways must enable at least one gateway")
	}
	if cfg.StatusPoll.IntervalSeconds <= 0 || cfg.StatusPoll.MaxAttempts <= 0 {
		return errors.New("payments.statusPoll values must be positive")
	}
	return nil
}
