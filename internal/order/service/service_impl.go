package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/config"
	"github.com/smallbiznis/qrdine/internal/events"
	"github.com/smallbiznis/qrdine/internal/idempotency"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
	"github.com/smallbiznis/qrdine/internal/observability/metrics"
	"github.com/smallbiznis/qrdine/internal/order/domain"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/smallbiznis/qrdine/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	RestaurantRepo restaurantdomain.Repository
	MenuRepo       menudomain.Repository
	Locker         *idempotency.Locker           `optional:"true"`
	Publisher      events.Publisher              `optional:"true"`
	Metrics        *metrics.Metrics              `optional:"true"`
	EngineMetrics  *metrics.EngineMetrics        `optional:"true"`
	Invoicer       domain.Invoicer               `optional:"true"`
	Invoicing      *config.InvoicingConfigHolder `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	restaurantRepo restaurantdomain.Repository
	menuRepo       menudomain.Repository
	locker         *idempotency.Locker
	publisher      events.Publisher
	metrics        *metrics.Metrics
	engineMetrics  *metrics.EngineMetrics
	invoicer       domain.Invoicer
	invoicing      *config.InvoicingConfigHolder
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher(p.Log)
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("order.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		restaurantRepo: p.RestaurantRepo,
		menuRepo:       p.MenuRepo,
		locker:         p.Locker,
		publisher:      publisher,
		metrics:        p.Metrics,
		engineMetrics:  p.EngineMetrics,
		invoicer:       p.Invoicer,
		invoicing:      p.Invoicing,
	}
}

func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlaceOrderResult, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(req.RestaurantID))
	if err != nil || restaurantID == 0 {
		return domain.PlaceOrderResult{}, domain.ErrInvalidRestaurant
	}

	token := strings.TrimSpace(req.SubmissionToken)
	if token == "" {
		return domain.PlaceOrderResult{}, domain.ErrMissingSubmissionToken
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeDineIn
	}
	if !orderType.Valid() {
		return domain.PlaceOrderResult{}, domain.ErrInvalidOrderType
	}

	if err := validateLines(req.Lines); err != nil {
		return domain.PlaceOrderResult{}, err
	}

	lockKey := idempotency.SubmissionKey(int64(restaurantID), token)
	lockToken, acquired, err := s.locker.TryLock(ctx, lockKey, idempotency.DefaultSubmissionTTL)
	if err != nil {
		// the unique index on the submission token still rejects duplicates
		s.log.Warn("submission lock unavailable", zap.String("restaurant_id", restaurantID.String()), zap.Error(err))
		acquired = true
	}
	if !acquired {
		return domain.PlaceOrderResult{}, domain.ErrSubmissionInFlight
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, lockToken); err != nil {
			s.log.Warn("submission lock release failed", zap.Error(err))
		}
	}()

	existing, err := s.repo.FindBySubmission(ctx, s.db, restaurantID, token)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if existing != nil {
		return s.replay(ctx, *existing, req.InvoiceNow)
	}

	restaurant, err := s.restaurantRepo.FindByID(ctx, s.db, restaurantID)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	if restaurant == nil {
		return domain.PlaceOrderResult{}, restaurantdomain.ErrNotFound
	}

	menuIDs := lo.Map(req.Lines, func(line domain.CartLine, _ int) snowflake.ID { return line.MenuItemID })
	catalog, err := s.menuRepo.FindByIDs(ctx, s.db, restaurantID, menuIDs)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}

	profile := restaurant.TaxProfile()
	totals := Aggregate(req.Lines, profile, catalog)

	now := s.clock.Now()
	order := domain.Order{
		ID:                  s.genID.Generate(),
		RestaurantID:        restaurantID,
		PublicRef:           ulid.Make().String(),
		SubmissionToken:     token,
		OrderType:           orderType,
		TableNumber:         strings.TrimSpace(req.TableNumber),
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		CustomerGSTIN:       strings.ToUpper(strings.TrimSpace(req.CustomerGSTIN)),
		PaymentMethod:       strings.TrimSpace(req.PaymentMethod),
		PaymentStatus:       domain.PaymentStatusPending,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
		Status:              domain.StatusNew,
		GSTEnabled:          profile.GSTEnabled,
		PricesIncludeTax:    profile.PricesIncludeTax,
		SubtotalExTax:       totals.SubtotalExTax,
		TotalTax:            totals.TotalTax,
		TotalIncTax:         totals.TotalIncTax,
		Metadata:            datatypes.JSONMap{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if orderType == domain.OrderTypeCounter {
		order.PaymentStatus = domain.PaymentStatusCompleted
		order.TableNumber = ""
	}
	if len(totals.Fallbacks) > 0 {
		order.Metadata["catalog_fallback_lines"] = lo.Map(totals.Fallbacks, func(f domain.Fallback, _ int) int { return f.LineNo })
	}

	items := totals.Items
	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].OrderID = order.ID
		items[i].CreatedAt = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &order, items)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// a concurrent submission with the same token committed first
			winner, findErr := s.repo.FindBySubmission(ctx, s.db, restaurantID, token)
			if findErr == nil && winner != nil {
				return s.replay(ctx, *winner, req.InvoiceNow)
			}
		}
		return domain.PlaceOrderResult{}, fmt.Errorf("insert order: %w", err)
	}
	order.Items = items

	s.recordPlaced(ctx, order, totals.Fallbacks)
	s.publish(ctx, events.TypeOrderCreated, order, orderCreatedPayload{
		OrderID:       order.ID.String(),
		PublicRef:     order.PublicRef,
		OrderType:     order.OrderType,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TableNumber:   order.TableNumber,
		ItemCount:     len(items),
		TotalIncTax:   order.TotalIncTax.StringFixed(2),
	})

	result := domain.PlaceOrderResult{Order: order, Fallbacks: totals.Fallbacks}
	if req.InvoiceNow {
		result.Invoice = s.invoice(ctx, order)
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, domain.ErrInvalidID
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, s.db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return *order, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.UpdateStatusResult, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.UpdateStatusResult{}, domain.ErrInvalidID
	}
	if !req.Status.Valid() {
		return domain.UpdateStatusResult{}, domain.ErrInvalidStatus
	}

	var (
		order   domain.Order
		from    domain.Status
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		order = *current
		from = current.Status
		if from == req.Status {
			return nil
		}
		if !from.CanTransition(req.Status) {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, orderID, req.Status, now); err != nil {
			return err
		}
		order.Status = req.Status
		order.UpdatedAt = now
		if req.Status == domain.StatusCompleted {
			order.CompletedAt = &now
		}
		changed = true
		return nil
	})
	if err != nil {
		return domain.UpdateStatusResult{}, err
	}

	result := domain.UpdateStatusResult{Order: order}
	if !changed {
		return result, nil
	}

	s.log.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)
	s.publish(ctx, events.TypeOrderStatusChanged, order, statusChangedPayload{
		OrderID: order.ID.String(),
		From:    from,
		To:      order.Status,
	})

	if order.Status == domain.StatusCompleted && s.invoicing.Get().InvoiceOnComplete {
		result.Invoice = s.invoice(ctx, order)
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, order domain.Order, invoiceNow bool) (domain.PlaceOrderResult, error) {
	items, err := s.repo.ListItems(ctx, s.db, order.ID)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}
	order.Items = items

	s.log.Info("order submission replayed",
		zap.String("order_id", order.ID.String()),
		zap.String("restaurant_id", order.RestaurantID.String()),
	)

	result := domain.PlaceOrderResult{Order: order, Replayed: true}
	if invoiceNow {
		result.Invoice = s.invoice(ctx, order)
	}
	return result, nil
}

// invoice issues the order's invoice. Failures are logged; the caller can
// retry through the invoice endpoint.
func (s *Service) invoice(ctx context.Context, order domain.Order) *invoicedomain.GenerateResult {
	if s.invoicer == nil {
		return nil
	}
	res, err := s.invoicer.GenerateForOrder(ctx, order.ID.String())
	if err != nil {
		s.log.Warn("invoice generation after order failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	return &res
}

func (s *Service) recordPlaced(ctx context.Context, order domain.Order, fallbacks []domain.Fallback) {
	for _, item := range order.Items {
		s.engineMetrics.IncOrderLine(regimeOf(item))
	}
	for _, f := range fallbacks {
		s.engineMetrics.IncCatalogFallback(f.Regime)
		s.log.Warn("menu item missing from catalog, priced from cart",
			zap.String("order_id", order.ID.String()),
			zap.String("restaurant_id", order.RestaurantID.String()),
			zap.String("menu_item_id", f.MenuItemID.String()),
			zap.Int("line_no", f.LineNo),
			zap.String("regime", f.Regime),
		)
	}
	s.metrics.RecordOrderPlaced(ctx, string(order.OrderType))
}

func (s *Service) publish(ctx context.Context, typ events.Type, order domain.Order, payload any) {
	evt, err := events.New(ctx, typ, order.RestaurantID.String(), order.ID.String(), s.clock.Now(), payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.metrics.RecordEventDropped(ctx, string(typ))
		s.log.Warn("publish event failed",
			zap.String("event_type", string(typ)),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func validateLines(lines []domain.CartLine) error {
	if len(lines) == 0 {
		return domain.ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}
		if err := taxdomain.ValidateAmount(line.UnitPrice); err != nil {
			return err
		}
		if line.TaxRate != nil {
			if err := taxdomain.ValidateRate(*line.TaxRate); err != nil {
				return err
			}
		}
	}
	return nil
}

func regimeOf(item domain.OrderItem) string {
	return taxdomain.Resolution{EffectiveRate: item.TaxRate, IsPackaged: item.IsPackagedGood}.Regime()
}

type orderCreatedPayload struct {
	OrderID       string               `json:"order_id"`
	PublicRef     string               `json:"public_ref"`
	OrderType     domain.OrderType     `json:"order_type"`
	Status        domain.Status        `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	TableNumber   string               `json:"table_number,omitempty"`
	ItemCount     int                  `json:"item_count"`
	TotalIncTax   string               `json:"total_inc_tax"`
}

type statusChangedPayload struct {
	OrderID string        `json:"order_id"`
	From    domain.Status `json:"from"`
	To      domain.Status `json:"to"`
}
