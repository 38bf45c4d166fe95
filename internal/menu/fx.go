package menu

import (
	"github.com/smallbiznis/qrdine/internal/menu/repository"
	"github.com/smallbiznis/qrdine/internal/menu/service"
	"go.uber.org/fx"
)

var Module = fx.Module("menu.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
