package service

import (
	"context"

	"shop-service/internal/access"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ShopService handles shop business logic
type ShopService struct {
	repo      store.Repository
	evaluator *access.Evaluator
	events    EventPublisher
	logger    *zap.Logger
}

// NewShopService creates a new shop service
func NewShopService(repo store.Repository, evaluator *access.Evaluator, events EventPublisher) *ShopService {
	return &ShopService{
		repo:      repo,
		evaluator: evaluator,
		events:    events,
		logger:    util.Component("shop-service"),
	}
}

// ShopRequest is the body of a shop create or update. Name is a pointer so
// that a partial update can leave it unchanged.
type ShopRequest struct {
	Name *string `json:"name"`
}

// ShopView is a shop together with the ids of its products.
type ShopView struct {
	models.Shop
	ProductIDs []int64
}

// List returns every shop with its product ids.
func (s *ShopService) List(ctx context.Context) (_ []ShopView, err error) {
	ctx, span := util.StartSpan(ctx, "ShopService.List")
	defer util.EndSpan(span, &err)

	shops, err := s.repo.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	return s.withProducts(ctx, shops)
}

// Get returns one shop with its product ids.
func (s *ShopService) Get(ctx context.Context, id int64) (_ *ShopView, err error) {
	ctx, span := util.StartSpan(ctx, "ShopService.Get", attribute.Int64("shop.id", id))
	defer util.EndSpan(span, &err)

	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.withProducts(ctx, []models.Shop{*shop})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create makes the acting user the owner of a new shop.
func (s *ShopService) Create(ctx context.Context, actor access.Actor, req *ShopRequest) (_ *ShopView, err error) {
	ctx, span := util.StartSpan(ctx, "ShopService.Create")
	defer util.EndSpan(span, &err)

	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.AuthenticatedOrReadOnly, access.Scope{}); err != nil {
		return nil, err
	}
	if req.Name == nil {
		return nil, required("name")
	}
	name, err := validateName("name", *req.Name)
	if err != nil {
		return nil, err
	}

	shop := &models.Shop{Name: name, OwnerID: actor.UserID}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return nil, err
	}

	util.ShopsCreatedTotal.Inc()
	s.logger.Info("Shop created",
		zap.Int64("shop_id", shop.ID),
		zap.Int64("owner_id", shop.OwnerID))

	s.publish(ctx, models.EventTypeShopCreated, shop)
	return &ShopView{Shop: *shop, ProductIDs: []int64{}}, nil
}

// Update renames a shop. A full update requires every writable field.
func (s *ShopService) Update(ctx context.Context, actor access.Actor, id int64, req *ShopRequest, partial bool) (_ *ShopView, err error) {
	ctx, span := util.StartSpan(ctx, "ShopService.Update", attribute.Int64("shop.id", id))
	defer util.EndSpan(span, &err)

	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ResourceOwner, access.ForResource(access.OwnerOfShop(shop))); err != nil {
		return nil, err
	}

	if req.Name == nil && !partial {
		return nil, required("name")
	}
	if req.Name != nil {
		if shop.Name, err = validateName("name", *req.Name); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateShop(ctx, shop); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a shop together with its products and orders.
func (s *ShopService) Delete(ctx context.Context, actor access.Actor, id int64) (err error) {
	ctx, span := util.StartSpan(ctx, "ShopService.Delete", attribute.Int64("shop.id", id))
	defer util.EndSpan(span, &err)

	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return err
	}
	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ResourceOwner, access.ForResource(access.OwnerOfShop(shop))); err != nil {
		return err
	}
	if err := s.repo.DeleteShop(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Shop deleted", zap.Int64("shop_id", id))
	s.publish(ctx, models.EventTypeShopDeleted, shop)
	return nil
}

func (s *ShopService) withProducts(ctx context.Context, shops []models.Shop) ([]ShopView, error) {
	ids := make([]int64, 0, len(shops))
	for _, shop := range shops {
		ids = append(ids, shop.ID)
	}
	products, err := s.repo.ProductIDsByShop(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ShopView, 0, len(shops))
	for _, shop := range shops {
		productIDs := products[shop.ID]
		if productIDs == nil {
			productIDs = []int64{}
		}
		views = append(views, ShopView{Shop: shop, ProductIDs: productIDs})
	}
	return views, nil
}

func (s *ShopService) publish(ctx context.Context, eventType string, shop *models.Shop) {
	event := &models.ShopEvent{
		BaseEvent: models.NewBaseEvent(eventType),
		ShopID:    shop.ID,
		OwnerID:   shop.OwnerID,
		Name:      shop.Name,
	}
	logPublishError(s.logger, eventType, s.events.PublishShopEvent(ctx, event))
}
