package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/qrdine/internal/invoice/domain"
	"github.com/smallbiznis/qrdine/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Repository[domain.Invoice] {
	return repository.ProvideStore[domain.Invoice](db)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.store(db).FindOne(ctx, &domain.Invoice{ID: id})
}

func (r *repo) FindByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Invoice, error) {
	return r.store(db).FindOne(ctx, &domain.Invoice{OrderID: orderID})
}

func (r *repo) LockRestaurant(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) error {
	stmt := db.WithContext(ctx)
	// sqlite has no row locks; its writer lock already serialises the transaction
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ids []snowflake.ID
	err := stmt.Table("restaurant_profiles").
		Where("id = ?", restaurantID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return domain.ErrInvalidRestaurant
	}
	return nil
}

func (r *repo) NextSeq(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) (int64, error) {
	var next int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_seq), 0) + 1
		 FROM invoices
		 WHERE restaurant_id = ?`,
		restaurantID,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, lines []domain.InvoiceLine) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	if len(lines) == 0 {
		return true, nil
	}
	if err := db.WithContext(ctx).Create(&lines).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceIDs ...snowflake.ID) ([]domain.InvoiceLine, error) {
	ids := lo.Uniq(invoiceIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var lines []domain.InvoiceLine
	err := db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("invoice_id ASC").
		Order("line_no ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, beforeID snowflake.ID, limit int) ([]*domain.Invoice, error) {
	opts := []repository.QueryOption{
		repository.OrderBy("id", true),
		repository.Limit(limit),
	}
	if beforeID != 0 {
		opts = append(opts, repository.Where("id < ?", beforeID))
	}
	return r.store(db).Find(ctx, &domain.Invoice{RestaurantID: restaurantID}, opts...)
}

func (r *repo) ListByDate(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, from, to time.Time) ([]*domain.Invoice, error) {
	return r.store(db).Find(ctx, &domain.Invoice{RestaurantID: restaurantID},
		repository.Where("invoice_date >= ? AND invoice_date < ?", from, to),
		repository.OrderBy("invoice_seq", false),
	)
}
