package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/qrdine/internal/config"
	"github.com/smallbiznis/qrdine/internal/events"
	"github.com/smallbiznis/qrdine/internal/idempotency"
	"github.com/smallbiznis/qrdine/internal/invoice"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	"github.com/smallbiznis/qrdine/internal/menu"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
	obslogger "github.com/smallbiznis/qrdine/internal/observability/logger"
	obstracing "github.com/smallbiznis/qrdine/internal/observability/tracing"
	"github.com/smallbiznis/qrdine/internal/order"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	"github.com/smallbiznis/qrdine/internal/ratelimit"
	"github.com/smallbiznis/qrdine/internal/restaurant"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	events.Module,
	idempotency.Module,
	ratelimit.Module,
	restaurant.Module,
	menu.Module,
	order.Module,
	invoice.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(Correlation())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	restaurantSvc restaurantdomain.Service
	menuSvc       menudomain.Service
	orderSvc      orderdomain.Service
	invoiceSvc    invoicedomain.Service
	checkout      *ratelimit.CheckoutLimiter
	log           *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	RestaurantSvc restaurantdomain.Service
	MenuSvc       menudomain.Service
	OrderSvc      orderdomain.Service
	InvoiceSvc    invoicedomain.Service
	Checkout      *ratelimit.CheckoutLimiter `optional:"true"`
	Log           *zap.Logger                `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		restaurantSvc: p.RestaurantSvc,
		menuSvc:       p.MenuSvc,
		orderSvc:      p.OrderSvc,
		invoiceSvc:    p.InvoiceSvc,
		checkout:      p.Checkout,
		log:           p.Log,
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Restaurants --------
	api.POST("/restaurants", s.CreateRestaurant)

	restaurants := api.Group("/restaurants/:restaurantId", RestaurantContext())
	{
		restaurants.GET("", s.GetRestaurant)
		restaurants.PATCH("/tax", s.UpdateTaxSettings)

		// -------- Menu --------
		restaurants.POST("/menu-items", s.CreateMenuItem)
		restaurants.GET("/menu-items", s.ListMenuItems)

		// -------- Orders --------
		restaurants.POST("/orders", CheckoutRateLimit(s.checkout, s.log), s.PlaceOrder)

		// -------- Invoices --------
		restaurants.GET("/invoices", s.ListInvoices)
		restaurants.GET("/reports/gst-sales", s.ExportGSTSales)
	}

	api.PATCH("/menu-items/:id", s.UpdateMenuItem)

	api.GET("/orders/:id", s.GetOrder)
	api.PATCH("/orders/:id/status", s.UpdateOrderStatus)
	api.POST("/orders/:id/invoice", s.GenerateInvoice)

	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.GET("/invoices/:id/html", s.RenderInvoice)
}
