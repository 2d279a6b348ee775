package service

import (
	"context"

	"shop-service/internal/access"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/totals"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductService manages the catalog of a shop.
type ProductService struct {
	repo      store.Repository
	evaluator *access.Evaluator
	events    EventPublisher
	logger    *zap.Logger
}

func NewProductService(repo store.Repository, evaluator *access.Evaluator, events EventPublisher) *ProductService {
	return &ProductService{
		repo:      repo,
		evaluator: evaluator,
		events:    events,
		logger:    util.Component("product-service"),
	}
}

// ProductRequest is the body of a product create or update.
type ProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

// List returns the products of a shop.
func (s *ProductService) List(ctx context.Context, actor access.Actor, shopID int64) (_ []models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List", attribute.Int64("shop.id", shopID))
	defer util.EndSpan(span, &err)

	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	if err := s.evaluator.Authorize(ctx, actor, access.Safe, access.ShopScoped, access.ForShop(shopID)); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, shopID)
}

// Get returns a product of the shop.
func (s *ProductService) Get(ctx context.Context, shopID, id int64) (_ *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Get", attribute.Int64("product.id", id))
	defer util.EndSpan(span, &err)

	return loadProductInShop(ctx, s.repo, shopID, id)
}

// Create adds a product to a shop owned by the actor.
func (s *ProductService) Create(ctx context.Context, actor access.Actor, shopID int64, req *ProductRequest) (_ *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create", attribute.Int64("shop.id", shopID))
	defer util.EndSpan(span, &err)

	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ShopScoped, access.ForShop(shopID)); err != nil {
		return nil, err
	}

	product := &models.Product{ShopID: shopID}
	if err := applyProductRequest(product, req, false); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("shop_id", shopID),
		zap.Int64("product_id", product.ID),
		zap.String("price", product.Price.StringFixed(models.MoneyPlaces)))

	s.publish(ctx, models.EventTypeProductCreated, product)
	return product, nil
}

// Update changes a product of a shop owned by the actor. Line items already
// created keep the price they captured.
func (s *ProductService) Update(ctx context.Context, actor access.Actor, shopID, id int64, req *ProductRequest, partial bool) (_ *models.Product, err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update", attribute.Int64("product.id", id))
	defer util.EndSpan(span, &err)

	product, err := s.authorizeProduct(ctx, actor, shopID, id)
	if err != nil {
		return nil, err
	}
	if err := applyProductRequest(product, req, partial); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.publish(ctx, models.EventTypeProductUpdated, product)
	return product, nil
}

// Delete removes a product. Its line items go with it, so the totals of
// every affected order are recomputed in the same transaction.
func (s *ProductService) Delete(ctx context.Context, actor access.Actor, shopID, id int64) (err error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete", attribute.Int64("product.id", id))
	defer util.EndSpan(span, &err)

	product, err := s.authorizeProduct(ctx, actor, shopID, id)
	if err != nil {
		return err
	}

	var affected []models.Order
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		orders, err := tx.LockOrdersWithProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		for i := range orders {
			if err := totals.Recompute(ctx, tx, &orders[i]); err != nil {
				return err
			}
		}
		affected = orders
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Product deleted",
		zap.Int64("product_id", id),
		zap.Int("orders_recomputed", len(affected)))

	s.publish(ctx, models.EventTypeProductDeleted, product)
	for _, order := range affected {
		event := &models.OrderTotalChangedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderTotalChanged),
			ShopID:    order.ShopID,
			OrderID:   order.ID,
			Operation: "product_deleted",
			Total:     order.Total,
		}
		logPublishError(s.logger, event.EventType, s.events.PublishOrderTotalChanged(ctx, event))
	}
	return nil
}

// authorizeProduct loads the product and its shop and checks that the actor
// owns the shop.
func (s *ProductService) authorizeProduct(ctx context.Context, actor access.Actor, shopID, id int64) (*models.Product, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	product, err := loadProductInShop(ctx, s.repo, shopID, id)
	if err != nil {
		return nil, err
	}
	owner := access.OwnerOfProduct(product, shop)
	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ResourceOwner, access.ForResource(owner)); err != nil {
		return nil, err
	}
	return product, nil
}

func applyProductRequest(product *models.Product, req *ProductRequest, partial bool) error {
	if !partial {
		if req.Name == nil {
			return required("name")
		}
		if req.Price == nil {
			return required("price")
		}
	}
	if req.Name != nil {
		name, err := validateName("name", *req.Name)
		if err != nil {
			return err
		}
		product.Name = name
	}
	if req.Description != nil {
		product.Description = *req.Description
	} else if !partial {
		product.Description = ""
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return err
		}
		product.Price = *req.Price
	}
	return nil
}

func (s *ProductService) publish(ctx context.Context, eventType string, product *models.Product) {
	event := &models.ProductEvent{
		BaseEvent: models.NewBaseEvent(eventType),
		ShopID:    product.ShopID,
		ProductID: product.ID,
		Price:     product.Price,
	}
	logPublishError(s.logger, eventType, s.events.PublishProductEvent(ctx, event))
}
