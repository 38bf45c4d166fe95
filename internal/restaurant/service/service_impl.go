package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/restaurant/domain"
	taxdomain "github.com/smallbiznis/qrdine/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("restaurant.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRestaurantRequest) (domain.Restaurant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Restaurant{}, domain.ErrInvalidName
	}

	gstin, err := normalizeGSTIN(req.GSTIN)
	if err != nil {
		return domain.Restaurant{}, err
	}

	email := strings.TrimSpace(req.SupportEmail)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Restaurant{}, domain.ErrInvalidEmail
	}

	id := s.genID.Generate()
	handle, err := s.uniqueSlug(ctx, name, id)
	if err != nil {
		return domain.Restaurant{}, err
	}

	now := s.clock.Now()
	restaurant := domain.Restaurant{
		ID:               id,
		Name:             name,
		Slug:             handle,
		LegalName:        strings.TrimSpace(req.LegalName),
		GSTIN:            gstin,
		Phone:            strings.TrimSpace(req.Phone),
		SupportEmail:     email,
		AddressLine1:     strings.TrimSpace(req.AddressLine1),
		AddressLine2:     strings.TrimSpace(req.AddressLine2),
		City:             strings.TrimSpace(req.City),
		State:            strings.TrimSpace(req.State),
		PostalCode:       strings.TrimSpace(req.PostalCode),
		GSTEnabled:       false,
		DefaultTaxRate:   domain.DefaultTaxRate,
		PricesIncludeTax: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &restaurant); err != nil {
		return domain.Restaurant{}, err
	}

	s.log.Info("restaurant created",
		zap.String("restaurant_id", restaurant.ID.String()),
		zap.String("slug", restaurant.Slug),
	)
	return restaurant, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Restaurant, error) {
	restaurantID, err := parseID(id)
	if err != nil {
		return domain.Restaurant{}, err
	}

	restaurant, err := s.repo.FindByID(ctx, s.db, restaurantID)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if restaurant == nil {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return *restaurant, nil
}

func (s *Service) GetBySlug(ctx context.Context, value string) (domain.Restaurant, error) {
	restaurant, err := s.repo.FindBySlug(ctx, s.db, strings.TrimSpace(value))
	if err != nil {
		return domain.Restaurant{}, err
	}
	if restaurant == nil {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return *restaurant, nil
}

// UpdateTaxSettings edits the profile used for future orders. Placed orders
// keep the convention stamped on their items.
func (s *Service) UpdateTaxSettings(ctx context.Context, req domain.UpdateTaxSettingsRequest) (domain.Restaurant, error) {
	restaurant, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return domain.Restaurant{}, err
	}

	if req.DefaultTaxRate != nil {
		if err := taxdomain.ValidateRate(*req.DefaultTaxRate); err != nil {
			return domain.Restaurant{}, err
		}
		restaurant.DefaultTaxRate = *req.DefaultTaxRate
	}
	if req.GSTEnabled != nil {
		restaurant.GSTEnabled = *req.GSTEnabled
	}
	if req.PricesIncludeTax != nil {
		restaurant.PricesIncludeTax = *req.PricesIncludeTax
	}
	if req.GSTIN != nil {
		gstin, err := normalizeGSTIN(*req.GSTIN)
		if err != nil {
			return domain.Restaurant{}, err
		}
		restaurant.GSTIN = gstin
	}
	restaurant.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, &restaurant); err != nil {
		return domain.Restaurant{}, err
	}

	s.log.Info("restaurant tax settings updated",
		zap.String("restaurant_id", restaurant.ID.String()),
		zap.Bool("gst_enabled", restaurant.GSTEnabled),
		zap.String("default_tax_rate", restaurant.DefaultTaxRate.String()),
		zap.Bool("prices_include_tax", restaurant.PricesIncludeTax),
	)
	return restaurant, nil
}

func (s *Service) uniqueSlug(ctx context.Context, name string, id snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "restaurant"
	}

	existing, err := s.repo.FindBySlug(ctx, s.db, base)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return base, nil
	}

	suffix := id.Base36()
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return base + "-" + suffix, nil
}

func normalizeGSTIN(value string) (string, error) {
	gstin := strings.ToUpper(strings.TrimSpace(value))
	if gstin == "" {
		return "", nil
	}
	if !gstinPattern.MatchString(gstin) {
		return "", domain.ErrInvalidGSTIN
	}
	return gstin, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
