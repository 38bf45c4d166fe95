package invoice

import (
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	"github.com/smallbiznis/qrdine/internal/invoice/render"
	"github.com/smallbiznis/qrdine/internal/invoice/repository"
	"github.com/smallbiznis/qrdine/internal/invoice/service"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
	fx.Provide(func(s invoicedomain.Service) orderdomain.Invoicer { return s }),
)
