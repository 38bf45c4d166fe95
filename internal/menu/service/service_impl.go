package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/menu/domain"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	restaurantRepo restaurantdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("menu.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		restaurantRepo: p.RestaurantRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error) {
	restaurantID, err := s.restaurantID(ctx, req.RestaurantID)
	if err != nil {
		return domain.MenuItem{}, err
	}

	status := req.Status
	if status == "" {
		status = domain.ItemStatusAvailable
	}

	now := s.clock.Now()
	item := domain.MenuItem{
		ID:             s.genID.Generate(),
		RestaurantID:   restaurantID,
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.TrimSpace(req.Category),
		Veg:            req.Veg,
		Price:          req.Price,
		IsPackagedGood: req.IsPackagedGood,
		TaxRate:        lo.FromPtrOr(req.TaxRate, decimal.Zero),
		HSN:            strings.TrimSpace(req.HSN),
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsPackagedGood && req.TaxRate == nil {
		return domain.MenuItem{}, domain.ErrPackagedRateNeeded
	}
	if err := validate(item); err != nil {
		return domain.MenuItem{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		return domain.MenuItem{}, err
	}
	return item, nil
}

// Update edits a catalog entry. Orders already placed keep the figures
// stamped at placement.
func (s *Service) Update(ctx context.Context, req domain.UpdateMenuItemRequest) (domain.MenuItem, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.MenuItem{}, err
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if existing == nil {
		return domain.MenuItem{}, domain.ErrNotFound
	}

	item := *existing
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
	}
	if req.Veg != nil {
		item.Veg = *req.Veg
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.IsPackagedGood != nil {
		item.IsPackagedGood = *req.IsPackagedGood
	}
	if req.TaxRate != nil {
		item.TaxRate = *req.TaxRate
	}
	if req.HSN != nil {
		item.HSN = strings.TrimSpace(*req.HSN)
	}
	if req.Status != nil {
		item.Status = *req.Status
	}
	if err := validate(item); err != nil {
		return domain.MenuItem{}, err
	}
	item.UpdatedAt = s.clock.Now()

	if err := s.repo.Save(ctx, s.db, &item); err != nil {
		return domain.MenuItem{}, err
	}

	if !item.Price.Equal(existing.Price) || !item.TaxRate.Equal(existing.TaxRate) || item.IsPackagedGood != existing.IsPackagedGood {
		s.log.Info("menu item pricing changed",
			zap.String("menu_item_id", item.ID.String()),
			zap.String("price", item.Price.StringFixed(2)),
			zap.String("tax_rate", item.TaxRate.String()),
			zap.Bool("is_packaged_good", item.IsPackagedGood),
		)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMenuItemsRequest) ([]domain.MenuItem, error) {
	restaurantID, err := s.restaurantID(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, restaurantID, domain.ListFilter{
		Category:      strings.TrimSpace(req.Category),
		IncludeHidden: req.IncludeHidden,
	})
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(items, func(item *domain.MenuItem, _ int) (domain.MenuItem, bool) {
		if item == nil {
			return domain.MenuItem{}, false
		}
		return *item, true
	}), nil
}

func (s *Service) restaurantID(ctx context.Context, value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidRestaurant
	}
	restaurant, err := s.restaurantRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return 0, err
	}
	if restaurant == nil {
		return 0, restaurantdomain.ErrNotFound
	}
	return id, nil
}

func validate(item domain.MenuItem) error {
	if item.Name == "" {
		return domain.ErrInvalidName
	}
	if !item.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	if err := taxdomain.ValidateAmount(item.Price); err != nil {
		return err
	}
	if err := taxdomain.ValidateRate(item.TaxRate); err != nil {
		return err
	}
	if item.HSN != "" && !validHSN(item.HSN) {
		return domain.ErrInvalidHSN
	}
	return nil
}

// validHSN accepts 4 to 8 digit HSN/SAC codes.
func validHSN(code string) bool {
	if len(code) < 4 || len(code) > 8 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
