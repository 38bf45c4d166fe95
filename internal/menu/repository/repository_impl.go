package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/qrdine/internal/menu/domain"
	"github.com/smallbiznis/qrdine/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Repository[domain.MenuItem] {
	return repository.ProvideStore[domain.MenuItem](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	return r.store(db).Create(ctx, item)
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	return r.store(db).Save(ctx, item)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.MenuItem, error) {
	return r.store(db).FindOne(ctx, &domain.MenuItem{ID: id})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, filter domain.ListFilter) ([]*domain.MenuItem, error) {
	opts := []repository.QueryOption{
		repository.OrderBy("category", false),
		repository.OrderBy("name", false),
	}
	if !filter.IncludeHidden {
		opts = append(opts, repository.Where("status <> ?", domain.ItemStatusHidden))
	}
	return r.store(db).Find(ctx, &domain.MenuItem{
		RestaurantID: restaurantID,
		Category:     filter.Category,
	}, opts...)
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]domain.MenuItem, error) {
	rawIDs := lo.Uniq(lo.Map(ids, func(id snowflake.ID, _ int) int64 { return int64(id) }))
	items, err := r.store(db).FindByIDs(ctx, rawIDs)
	if err != nil {
		return nil, err
	}

	owned := lo.Filter(items, func(item *domain.MenuItem, _ int) bool {
		return item != nil && item.RestaurantID == restaurantID
	})
	return lo.SliceToMap(owned, func(item *domain.MenuItem) (snowflake.ID, domain.MenuItem) {
		return item.ID, *item
	}), nil
}
