package order

import (
	"github.com/santuri/tikiti/internal/order/repository"
	"github.com/santuri/tikiti/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
