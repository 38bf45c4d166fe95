package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/config"
	"github.com/smallbiznis/qrdine/internal/events"
	invoicedomain "github.com/smallbiznis/qrdine/internal/invoice/domain"
	"github.com/smallbiznis/qrdine/internal/invoice/repository"
	orderdomain "github.com/smallbiznis/qrdine/internal/order/domain"
	orderrepo "github.com/smallbiznis/qrdine/internal/order/repository"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	restaurantrepo "github.com/smallbiznis/qrdine/internal/restaurant/repository"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"github.com/smallbiznis/qrdine/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *capturePublisher) count(typ events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evt := range p.events {
		if evt.Type == typ {
			n++
		}
	}
	return n
}

var fixtureNow = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

var gstExclusive = taxdomain.TaxProfile{GSTEnabled: true, DefaultTaxRate: d("5"), PricesIncludeTax: false}

type invoiceFixture struct {
	svc        invoicedomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	publisher  *capturePublisher
	restaurant restaurantdomain.Restaurant
}

func newInvoiceFixture(t *testing.T, invoicing config.InvoicingConfig) *invoiceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&restaurantdomain.Restaurant{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	restaurant := restaurantdomain.Restaurant{
		ID:               node.Generate(),
		Name:             "Biryani Point",
		Slug:             "biryani-point",
		LegalName:        "Biryani Point Foods LLP",
		GSTIN:            "29AAAAA0000A1Z5",
		City:             "Bengaluru",
		GSTEnabled:       true,
		DefaultTaxRate:   d("5"),
		PricesIncludeTax: false,
		CreatedAt:        fixtureNow,
		UpdatedAt:        fixtureNow,
	}
	require.NoError(t, db.Create(&restaurant).Error)

	fake := clock.NewFakeClock(fixtureNow)
	publisher := &capturePublisher{}
	svc := NewService(ServiceParam{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          fake,
		Repo:           repository.Provide(),
		OrderRepo:      orderrepo.Provide(),
		RestaurantRepo: restaurantrepo.Provide(),
		Publisher:      publisher,
		Invoicing:      config.NewStaticInvoicingConfig(invoicing),
	})

	return &invoiceFixture{
		svc:        svc,
		db:         db,
		node:       node,
		clock:      fake,
		publisher:  publisher,
		restaurant: restaurant,
	}
}

// seedOrder stores a priced order for the mixed cart and returns it.
func (f *invoiceFixture) seedOrder(t *testing.T, restaurantID snowflake.ID, profile taxdomain.TaxProfile) orderdomain.Order {
	t.Helper()

	order, items := placedOrder(profile, mixedCart())
	order.ID = f.node.Generate()
	order.RestaurantID = restaurantID
	order.PublicRef = order.ID.String()
	order.SubmissionToken = order.ID.String()
	order.OrderType = orderdomain.OrderTypeDineIn
	order.Status = orderdomain.StatusCompleted
	order.PaymentStatus = orderdomain.PaymentStatusPending
	order.CreatedAt = f.clock.Now()
	order.UpdatedAt = f.clock.Now()
	require.NoError(t, f.db.Create(order).Error)

	for i := range items {
		items[i].ID = f.node.Generate()
		items[i].OrderID = order.ID
		items[i].CreatedAt = f.clock.Now()
	}
	require.NoError(t, f.db.Create(&items).Error)

	order.Items = items
	return *order
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestGenerateForOrderIssuesInvoice(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	res, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)
	assert.False(t, res.AlreadyIssued)
	require.NotNil(t, res.Reconciliation)
	assert.True(t, res.Reconciliation.Matched)

	inv := res.Invoice
	assert.Equal(t, "INV-000001", inv.InvoiceNo)
	assert.Equal(t, int64(1), inv.InvoiceSeq)
	assert.Equal(t, order.ID, inv.OrderID)
	assert.Equal(t, f.restaurant.ID, inv.RestaurantID)
	assert.True(t, inv.InvoiceDate.Equal(fixtureNow))
	assert.Equal(t, "Asha", inv.CustomerName)
	assert.True(t, inv.Reconciled)
	assertMoney(t, order.SubtotalExTax.String(), inv.SubtotalExTax, "subtotal")
	assertMoney(t, order.TotalTax.String(), inv.TotalTax, "tax")
	assertMoney(t, order.TotalIncTax.String(), inv.TotalIncTax, "total")
	assertMoney(t, inv.TotalTax.String(), inv.CGST.Add(inv.SGST), "split")
	require.Len(t, inv.Lines, len(order.Items))
	assert.Equal(t, 1, f.publisher.count(events.TypeInvoiceGenerated))

	stored, err := f.svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNo, stored.InvoiceNo)
	require.Len(t, stored.Lines, len(order.Items))
	for i, line := range stored.Lines {
		item := order.Items[i]
		assert.Equal(t, i+1, line.LineNo)
		assert.Equal(t, item.ItemName, line.ItemName)
		assert.Equal(t, item.Quantity, line.Qty)
		assertMoney(t, item.TaxRate.String(), line.TaxRate, "line rate")
		assertMoney(t, item.LineTaxAmount.String(), line.TaxAmount, "line tax")
		assertMoney(t, item.LineTotalIncTax.String(), line.LineTotalIncTax, "line total")
	}
}

func TestGenerateForOrderIsIdempotent(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	first, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)

	assert.True(t, second.AlreadyIssued)
	assert.Nil(t, second.Reconciliation)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Equal(t, first.Invoice.InvoiceNo, second.Invoice.InvoiceNo)
	assert.Len(t, second.Invoice.Lines, len(first.Invoice.Lines))
	assert.Equal(t, int64(1), countRows(t, f.db, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(len(order.Items)), countRows(t, f.db, &invoicedomain.InvoiceLine{}))
	assert.Equal(t, 1, f.publisher.count(events.TypeInvoiceGenerated))
}

func TestGenerateForOrderNumbersPerRestaurant(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()

	other := restaurantdomain.Restaurant{
		ID:             f.node.Generate(),
		Name:           "Dosa Corner",
		Slug:           "dosa-corner",
		GSTEnabled:     true,
		DefaultTaxRate: d("5"),
		CreatedAt:      fixtureNow,
		UpdatedAt:      fixtureNow,
	}
	require.NoError(t, f.db.Create(&other).Error)

	var numbers []string
	for _, restaurantID := range []snowflake.ID{f.restaurant.ID, f.restaurant.ID, other.ID, f.restaurant.ID} {
		order := f.seedOrder(t, restaurantID, gstExclusive)
		res, err := f.svc.GenerateForOrder(ctx, order.ID.String())
		require.NoError(t, err)
		numbers = append(numbers, res.Invoice.InvoiceNo)
	}

	assert.Equal(t, []string{"INV-000001", "INV-000002", "INV-000001", "INV-000003"}, numbers)
}

func TestGenerateForOrderUsesConfiguredNumbering(t *testing.T) {
	cfg := config.DefaultInvoicingConfig()
	cfg.NumberPrefix = "BP/{FY}/"
	cfg.NumberWidth = 4
	f := newInvoiceFixture(t, cfg)
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	res, err := f.svc.GenerateForOrder(context.Background(), order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "BP/2526/0001", res.Invoice.InvoiceNo)
}

func TestGenerateForOrderIgnoresLaterProfileChange(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	require.NoError(t, f.db.Model(&restaurantdomain.Restaurant{}).
		Where("id = ?", f.restaurant.ID).
		Updates(map[string]any{"default_tax_rate": d("18"), "prices_include_tax": true}).Error)

	res, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Invoice.Reconciled)
	assertMoney(t, order.TotalTax.String(), res.Invoice.TotalTax, "tax")
	assertMoney(t, order.TotalIncTax.String(), res.Invoice.TotalIncTax, "total")
	for i, line := range res.Invoice.Lines {
		assertMoney(t, order.Items[i].TaxRate.String(), line.TaxRate, "rate")
	}
}

func TestGenerateForOrderRecordsMismatch(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	tampered := order.TotalIncTax.Add(d("0.02"))
	require.NoError(t, f.db.Model(&orderdomain.Order{}).
		Where("id = ?", order.ID).
		Update("total_inc_tax", tampered).Error)

	res, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)
	require.NotNil(t, res.Reconciliation)
	assert.False(t, res.Reconciliation.Matched)
	assert.False(t, res.Invoice.Reconciled)
	assertMoney(t, tampered.String(), res.Invoice.TotalIncTax, "stored total wins")

	stored, err := f.svc.GetByID(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.Reconciled)
	assert.Contains(t, stored.Metadata, "reconciliation")
}

func TestGenerateForOrderToleranceAcceptsDrift(t *testing.T) {
	cfg := config.DefaultInvoicingConfig()
	cfg.ReconcileTolerance = 0.05
	f := newInvoiceFixture(t, cfg)
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	require.NoError(t, f.db.Model(&orderdomain.Order{}).
		Where("id = ?", order.ID).
		Update("total_inc_tax", order.TotalIncTax.Add(d("0.02"))).Error)

	res, err := f.svc.GenerateForOrder(context.Background(), order.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Invoice.Reconciled)
}

func TestGenerateForOrderErrors(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()

	_, err := f.svc.GenerateForOrder(ctx, "not-a-number")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)

	_, err = f.svc.GenerateForOrder(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, invoicedomain.ErrOrderNotFound)

	empty := orderdomain.Order{
		ID:              f.node.Generate(),
		RestaurantID:    f.restaurant.ID,
		SubmissionToken: "empty",
		OrderType:       orderdomain.OrderTypeDineIn,
		Status:          orderdomain.StatusCompleted,
		PaymentStatus:   orderdomain.PaymentStatusPending,
		SubtotalExTax:   d("0"),
		TotalTax:        d("0"),
		TotalIncTax:     d("0"),
		CreatedAt:       fixtureNow,
		UpdatedAt:       fixtureNow,
	}
	empty.PublicRef = empty.ID.String()
	require.NoError(t, f.db.Create(&empty).Error)

	_, err = f.svc.GenerateForOrder(ctx, empty.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNoLineItems)
	assert.Equal(t, int64(0), countRows(t, f.db, &invoicedomain.Invoice{}))

	_, err = f.svc.GetByID(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestListInvoicesPaginates(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		order := f.seedOrder(t, f.restaurant.ID, gstExclusive)
		_, err := f.svc.GenerateForOrder(ctx, order.ID.String())
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{
		Pagination:   pagination.Pagination{PageSize: 2},
		RestaurantID: f.restaurant.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, first.Invoices, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "INV-000003", first.Invoices[0].InvoiceNo)
	assert.Equal(t, "INV-000002", first.Invoices[1].InvoiceNo)

	second, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{
		Pagination:   pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		RestaurantID: f.restaurant.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, second.Invoices, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "INV-000001", second.Invoices[0].InvoiceNo)

	_, err = f.svc.List(ctx, invoicedomain.ListInvoiceRequest{RestaurantID: "x"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRestaurant)
}

func TestGSTSalesFlattensLines(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()

	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)
	issued, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	later := f.seedOrder(t, f.restaurant.ID, gstExclusive)
	_, err = f.svc.GenerateForOrder(ctx, later.ID.String())
	require.NoError(t, err)

	rows, err := f.svc.GSTSales(ctx, invoicedomain.GSTSalesRequest{
		RestaurantID: f.restaurant.ID.String(),
		From:         fixtureNow.Add(-time.Hour),
		To:           fixtureNow.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, rows, len(order.Items))

	for i, row := range rows {
		line := issued.Invoice.Lines[i]
		assert.Equal(t, "INV-000001", row.InvoiceNo)
		assert.Equal(t, line.LineNo, row.LineNo)
		assertMoney(t, line.LineTotalExTax.String(), row.TaxableValue, "taxable")
		assertMoney(t, line.TaxAmount.String(), row.CGST.Add(row.SGST), "split")
		assert.True(t, row.IGST.IsZero())
		assertMoney(t, issued.Invoice.TotalIncTax.String(), row.InvoiceTotal, "invoice total")
	}

	empty, err := f.svc.GSTSales(ctx, invoicedomain.GSTSalesRequest{
		RestaurantID: f.restaurant.ID.String(),
		From:         fixtureNow.Add(-72 * time.Hour),
		To:           fixtureNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.svc.GSTSales(ctx, invoicedomain.GSTSalesRequest{
		RestaurantID: f.restaurant.ID.String(),
		From:         fixtureNow,
		To:           fixtureNow,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidDateRange)

	var buf bytes.Buffer
	require.NoError(t, WriteGSTSalesCSV(&buf, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(rows)+1)
	assert.Equal(t, "invoice_no", records[0][0])
	assert.Equal(t, "INV-000001", records[1][0])
	assert.Equal(t, "2026-02-01", records[1][1])
	assert.Equal(t, "Mineral Water 1L", records[1][6])
	assert.Equal(t, "2201", records[1][7])
	assert.Equal(t, "18.00", records[1][10])
}

func TestRenderHTMLIncludesSeller(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	res, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)

	html, err := f.svc.RenderHTML(ctx, res.Invoice.ID.String())
	require.NoError(t, err)
	assert.Contains(t, html, "INV-000001")
	assert.Contains(t, html, "Biryani Point Foods LLP")
	assert.Contains(t, html, "29AAAAA0000A1Z5")
	assert.Contains(t, html, "Bengaluru")
	assert.Contains(t, html, "Mineral Water 1L")
}

type seqConflictRepo struct {
	invoicedomain.Repository
	conflicts int
	inserts   int
	locks     int
}

func (r *seqConflictRepo) LockRestaurant(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) error {
	r.locks++
	return r.Repository.LockRestaurant(ctx, db, restaurantID)
}

func (r *seqConflictRepo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, lines []invoicedomain.InvoiceLine) (bool, error) {
	r.inserts++
	if r.conflicts > 0 {
		r.conflicts--
		return false, fmt.Errorf("ux_invoices_seq: %w", gorm.ErrDuplicatedKey)
	}
	return r.Repository.Insert(ctx, db, invoice, lines)
}

func (f *invoiceFixture) serviceWithRepo(repo invoicedomain.Repository) invoicedomain.Service {
	return NewService(ServiceParam{
		DB:             f.db,
		Log:            zap.NewNop(),
		GenID:          f.node,
		Clock:          f.clock,
		Repo:           repo,
		OrderRepo:      orderrepo.Provide(),
		RestaurantRepo: restaurantrepo.Provide(),
		Publisher:      f.publisher,
		Invoicing:      config.NewStaticInvoicingConfig(config.DefaultInvoicingConfig()),
	})
}

func TestGenerateForOrderRetriesTakenSequence(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	repo := &seqConflictRepo{Repository: repository.Provide(), conflicts: 1}
	res, err := f.serviceWithRepo(repo).GenerateForOrder(ctx, order.ID.String())
	require.NoError(t, err)

	assert.False(t, res.AlreadyIssued)
	assert.Equal(t, "INV-000001", res.Invoice.InvoiceNo)
	assert.Equal(t, 2, repo.inserts)
	assert.Equal(t, 2, repo.locks)
	assert.Equal(t, int64(1), countRows(t, f.db, &invoicedomain.Invoice{}))
}

func TestGenerateForOrderGivesUpAfterRepeatedSequenceConflicts(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.restaurant.ID, gstExclusive)

	repo := &seqConflictRepo{Repository: repository.Provide(), conflicts: maxIssueAttempts}
	_, err := f.serviceWithRepo(repo).GenerateForOrder(ctx, order.ID.String())
	require.ErrorIs(t, err, errSeqTaken)

	assert.Equal(t, maxIssueAttempts, repo.inserts)
	assert.Equal(t, int64(0), countRows(t, f.db, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &invoicedomain.InvoiceLine{}))
}

func TestGenerateForOrderRequiresRestaurantRow(t *testing.T) {
	f := newInvoiceFixture(t, config.DefaultInvoicingConfig())
	ctx := context.Background()
	order := f.seedOrder(t, f.node.Generate(), gstExclusive)

	_, err := f.svc.GenerateForOrder(ctx, order.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRestaurant)
	assert.Equal(t, int64(0), countRows(t, f.db, &invoicedomain.Invoice{}))
}
