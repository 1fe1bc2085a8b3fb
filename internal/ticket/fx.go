package ticket

import (
	"github.com/santuri/tikiti/internal/ticket/repository"
	"github.com/santuri/tikiti/internal/ticket/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ticket",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
