package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/config"
	"github.com/smallbiznis/qrdine/internal/events"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	"github.com/smallbiznis/qrdine/internal/invoice/format"
	"github.com/smallbiznis/qrdine/internal/invoice/render"
	"github.com/smallbiznis/qrdine/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/smallbiznis/qrdine/pkg/db"
	"github.com/smallbiznis/qrdine/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxIssueAttempts = 3

// errSeqTaken marks an insert that lost the invoice number to a concurrent
// generation for the same restaurant.
var errSeqTaken = errors.New("invoice_seq_taken")

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           invoicedomain.Repository
	OrderRepo      orderdomain.Repository
	RestaurantRepo restaurantdomain.Repository
	Renderer       render.Renderer               `optional:"true"`
	Publisher      events.Publisher              `optional:"true"`
	Metrics        *metrics.Metrics              `optional:"true"`
	EngineMetrics  *metrics.EngineMetrics        `optional:"true"`
	Invoicing      *config.InvoicingConfigHolder `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID          *snowflake.Node
	clock          clock.Clock
	repo           invoicedomain.Repository
	orderRepo      orderdomain.Repository
	restaurantRepo restaurantdomain.Repository
	renderer       render.Renderer
	publisher      events.Publisher
	metrics        *metrics.Metrics
	engineMetrics  *metrics.EngineMetrics
	invoicing      *config.InvoicingConfigHolder
}

func NewService(p ServiceParam) invoicedomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher(p.Log)
	}
	renderer := p.Renderer
	if renderer == nil {
		renderer = render.NewRenderer()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:          p.Clock,
		repo:           p.Repo,
		orderRepo:      p.OrderRepo,
		restaurantRepo: p.RestaurantRepo,
		renderer:       renderer,
		publisher:      publisher,
		metrics:        p.Metrics,
		engineMetrics:  p.EngineMetrics,
		invoicing:      p.Invoicing,
	}
}

// GenerateForOrder issues the order's invoice once. A repeated call returns
// the invoice already issued without writing anything.
func (s *Service) GenerateForOrder(ctx context.Context, orderID string) (invoicedomain.GenerateResult, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(orderID))
	if err != nil {
		return invoicedomain.GenerateResult{}, invoicedomain.ErrInvalidID
	}

	started := time.Now()
	cfg := s.invoicing.Get()
	opts := invoicedomain.BuildOptions{Tolerance: decimal.NewFromFloat(cfg.ReconcileTolerance)}

	var (
		result invoicedomain.GenerateResult
		order  orderdomain.Order
	)
	for attempt := 1; ; attempt++ {
		result, order, err = s.issue(ctx, id, cfg, opts)
		if !errors.Is(err, errSeqTaken) || attempt >= maxIssueAttempts {
			break
		}
		s.log.Warn("invoice sequence taken, retrying",
			zap.String("order_id", id.String()),
			zap.Int("attempt", attempt),
		)
	}
	s.engineMetrics.ObserveInvoiceDuration(time.Since(started))
	if err != nil {
		s.engineMetrics.IncInvoiceRequest(metrics.InvoiceOutcomeFailed)
		s.engineMetrics.IncInvoiceError(err)
		return invoicedomain.GenerateResult{}, err
	}

	if result.AlreadyIssued {
		s.engineMetrics.IncInvoiceRequest(metrics.InvoiceOutcomeExisting)
		return result, nil
	}

	s.engineMetrics.IncInvoiceRequest(metrics.InvoiceOutcomeIssued)
	s.metrics.RecordInvoiceIssued(ctx, string(order.OrderType))
	s.log.Info("invoice issued",
		zap.String("invoice_id", result.Invoice.ID.String()),
		zap.String("invoice_no", result.Invoice.InvoiceNo),
		zap.String("order_id", order.ID.String()),
		zap.String("restaurant_id", order.RestaurantID.String()),
	)
	if rec := result.Reconciliation; rec != nil && !rec.Matched {
		s.engineMetrics.IncReconcileMismatch()
		s.log.Warn("invoice totals differ from stored order totals",
			zap.String("invoice_no", result.Invoice.InvoiceNo),
			zap.String("order_id", order.ID.String()),
			zap.String("stored_inc_tax", rec.StoredIncTax.StringFixed(2)),
			zap.String("recomputed_inc_tax", rec.RecomputedIncTax.StringFixed(2)),
			zap.String("stored_tax", rec.StoredTax.StringFixed(2)),
			zap.String("recomputed_tax", rec.RecomputedTax.StringFixed(2)),
		)
	}
	s.publishGenerated(ctx, result.Invoice)

	return result, nil
}

// issue runs one generation attempt in its own transaction.
func (s *Service) issue(ctx context.Context, id snowflake.ID, cfg config.InvoicingConfig, opts invoicedomain.BuildOptions) (invoicedomain.GenerateResult, orderdomain.Order, error) {
	var (
		result invoicedomain.GenerateResult
		order  orderdomain.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked == nil {
			return invoicedomain.ErrOrderNotFound
		}
		order = *locked

		existing, err := s.repo.FindByOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			result, err = s.existing(ctx, tx, *existing)
			return err
		}

		items, err := s.orderRepo.ListItems(ctx, tx, id)
		if err != nil {
			return err
		}
		draft, err := BuildInvoice(locked, items, opts)
		if err != nil {
			return err
		}

		if err := s.repo.LockRestaurant(ctx, tx, order.RestaurantID); err != nil {
			return err
		}
		seq, err := s.repo.NextSeq(ctx, tx, order.RestaurantID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		invoiceNo, err := format.FormatInvoiceNumber(cfg.NumberPrefix, cfg.NumberWidth, now, seq)
		if err != nil {
			return err
		}

		invoice := draft.Header
		invoice.ID = s.genID.Generate()
		invoice.InvoiceSeq = seq
		invoice.InvoiceNo = invoiceNo
		invoice.InvoiceDate = now
		invoice.CreatedAt = now

		lines := draft.Lines
		for i := range lines {
			lines[i].ID = s.genID.Generate()
			lines[i].InvoiceID = invoice.ID
		}

		inserted, err := s.repo.Insert(ctx, tx, &invoice, lines)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return fmt.Errorf("insert invoice %s: %w", invoiceNo, errSeqTaken)
			}
			return fmt.Errorf("insert invoice: %w", err)
		}
		if !inserted {
			current, err := s.repo.FindByOrder(ctx, tx, id)
			if err != nil {
				return err
			}
			if current == nil {
				return invoicedomain.ErrNotFound
			}
			result, err = s.existing(ctx, tx, *current)
			return err
		}

		invoice.Lines = lines
		rec := draft.Reconciliation
		result = invoicedomain.GenerateResult{Invoice: invoice, Reconciliation: &rec}
		return nil
	})
	return result, order, err
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	lines, err := s.repo.ListLines(ctx, s.db, item.ID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	item.Lines = lines
	return *item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(req.RestaurantID))
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidRestaurant
	}

	var beforeID snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		beforeID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, restaurantID, beforeID, limit+1)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	page, info, err := pagination.BuildCursorPageInfo(invoices, limit, func(inv invoicedomain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.String(), CreatedAt: inv.CreatedAt.Format(time.RFC3339)}
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	return invoicedomain.ListInvoiceResponse{PageInfo: info, Invoices: page}, nil
}

// GSTSales flattens the restaurant's invoices dated in [From, To) into one
// row per invoice line.
func (s *Service) GSTSales(ctx context.Context, req invoicedomain.GSTSalesRequest) ([]invoicedomain.GSTSalesRow, error) {
	restaurantID, err := snowflake.ParseString(strings.TrimSpace(req.RestaurantID))
	if err != nil {
		return nil, invoicedomain.ErrInvalidRestaurant
	}
	if req.From.IsZero() || req.To.IsZero() || !req.To.After(req.From) {
		return nil, invoicedomain.ErrInvalidDateRange
	}

	invoices, err := s.repo.ListByDate(ctx, s.db, restaurantID, req.From.UTC(), req.To.UTC())
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return []invoicedomain.GSTSalesRow{}, nil
	}

	ids := lo.Map(invoices, func(inv *invoicedomain.Invoice, _ int) snowflake.ID { return inv.ID })
	lines, err := s.repo.ListLines(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}
	byInvoice := lo.GroupBy(lines, func(line invoicedomain.InvoiceLine) snowflake.ID { return line.InvoiceID })

	rows := make([]invoicedomain.GSTSalesRow, 0, len(lines))
	for _, inv := range invoices {
		for _, line := range byInvoice[inv.ID] {
			cgst := taxdomain.RoundMoney(line.TaxAmount.Div(two))
			rows = append(rows, invoicedomain.GSTSalesRow{
				InvoiceNo:       inv.InvoiceNo,
				InvoiceDate:     inv.InvoiceDate,
				CustomerName:    inv.CustomerName,
				CustomerGSTIN:   inv.CustomerGSTIN,
				PaymentMethod:   inv.PaymentMethod,
				LineNo:          line.LineNo,
				ItemName:        line.ItemName,
				HSN:             line.HSN,
				Qty:             line.Qty,
				TaxableValue:    line.LineTotalExTax,
				TaxRate:         line.TaxRate,
				CGST:            cgst,
				SGST:            line.TaxAmount.Sub(cgst),
				IGST:            decimal.Zero,
				LineTotalIncTax: line.LineTotalIncTax,
				InvoiceTotal:    inv.TotalIncTax,
			})
		}
	}
	return rows, nil
}

func (s *Service) RenderHTML(ctx context.Context, id string) (string, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	var seller render.Seller
	restaurant, err := s.restaurantRepo.FindByID(ctx, s.db, invoice.RestaurantID)
	if err != nil {
		return "", err
	}
	if restaurant != nil {
		seller = render.Seller{
			Name:      restaurant.Name,
			LegalName: restaurant.LegalName,
			GSTIN:     restaurant.GSTIN,
			Address: strings.Join(lo.Compact([]string{
				restaurant.AddressLine1,
				restaurant.AddressLine2,
				restaurant.City,
				restaurant.State,
				restaurant.PostalCode,
			}), ", "),
		}
	}

	return s.renderer.RenderHTML(render.RenderInput{
		Seller:  seller,
		Invoice: invoice,
		Lines:   invoice.Lines,
	})
}

func (s *Service) existing(ctx context.Context, tx *gorm.DB, invoice invoicedomain.Invoice) (invoicedomain.GenerateResult, error) {
	lines, err := s.repo.ListLines(ctx, tx, invoice.ID)
	if err != nil {
		return invoicedomain.GenerateResult{}, err
	}
	invoice.Lines = lines
	return invoicedomain.GenerateResult{Invoice: invoice, AlreadyIssued: true}, nil
}

func (s *Service) publishGenerated(ctx context.Context, invoice invoicedomain.Invoice) {
	payload := map[string]any{
		"invoice_id":    invoice.ID.String(),
		"invoice_no":    invoice.InvoiceNo,
		"order_id":      invoice.OrderID.String(),
		"total_inc_tax": invoice.TotalIncTax.StringFixed(2),
		"total_tax":     invoice.TotalTax.StringFixed(2),
		"reconciled":    invoice.Reconciled,
	}
	evt, err := events.New(ctx, events.TypeInvoiceGenerated, invoice.RestaurantID.String(), invoice.ID.String(), invoice.CreatedAt, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.metrics.RecordEventDropped(ctx, string(events.TypeInvoiceGenerated))
		s.log.Warn("publish event failed",
			zap.String("event_type", string(events.TypeInvoiceGenerated)),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}
