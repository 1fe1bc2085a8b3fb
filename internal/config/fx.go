package config

import "go.uber.org/fx"

// Module wires application and payments configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewPaymentsConfigHolder,
	),
)
