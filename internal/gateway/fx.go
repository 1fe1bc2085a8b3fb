package gateway

import (
	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/config"
	"github.com/santuri/tikiti/internal/gateway/mpesa"
	"github.com/santuri/tikiti/internal/gateway/paystack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(
		func(cfg config.Config, log *zap.Logger, clk clock.Clock) *mpesa.Adapter {
			return mpesa.NewAdapter(cfg.Mpesa, nil, log, clk)
		},
		func(cfg config.Config, log *zap.Logger) *paystack.Adapter {
			return paystack.NewAdapter(cfg.Paystack, nil, log)
		},
		func(mp *mpesa.Adapter, ps *paystack.Adapter) *Registry {
			return NewRegistry(mp, ps)
		},
	),
)
