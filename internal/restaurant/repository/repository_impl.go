package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qrdine/internal/restaurant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).Create(restaurant).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).
		Model(&domain.Restaurant{}).
		Where("id = ?", restaurant.ID).
		Updates(map[string]any{
			"gst_enabled":        restaurant.GSTEnabled,
			"default_tax_rate":   restaurant.DefaultTaxRate,
			"prices_include_tax": restaurant.PricesIncludeTax,
			"gstin":              restaurant.GSTIN,
			"updated_at":         restaurant.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Restaurant, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Restaurant, error) {
	return r.findOne(ctx, db, "slug = ?", slug)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	err := db.WithContext(ctx).Where(query, arg).First(&restaurant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}
