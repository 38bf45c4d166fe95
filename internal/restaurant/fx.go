package restaurant

import (
	"github.com/smallbiznis/qrdine/internal/restaurant/repository"
	"github.com/smallbiznis/qrdine/internal/restaurant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restaurant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
