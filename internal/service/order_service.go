package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/access"
	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	repo           store.Repository
	evaluator      *access.Evaluator
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	events         EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency may be nil, in
// which case Idempotency-Key headers are ignored.
func NewOrderService(
	repo store.Repository,
	evaluator *access.Evaluator,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		repo:           repo,
		evaluator:      evaluator,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		events:         events,
		logger:         util.Component("order-service"),
	}
}

// OrderView is an order together with its line items.
type OrderView struct {
	models.Order
	LineItems []models.LineItem
}

// List returns the orders of a shop.
func (s *OrderService) List(ctx context.Context, shopID int64) (_ []OrderView, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.List", attribute.Int64("shop.id", shopID))
	defer util.EndSpan(span, &err)

	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	orders, err := s.repo.ListOrders(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return s.withLineItems(ctx, orders)
}

// Get returns an order of the shop.
func (s *OrderService) Get(ctx context.Context, shopID, id int64) (_ *OrderView, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Get", attribute.Int64("order.id", id))
	defer util.EndSpan(span, &err)

	order, err := loadOrderInShop(ctx, s.repo, shopID, id)
	if err != nil {
		return nil, err
	}
	views, err := s.withLineItems(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create places an empty order in a shop with the actor as client. When an
// idempotency key is given, a repeated request returns the order created by
// the first one.
func (s *OrderService) Create(ctx context.Context, actor access.Actor, shopID int64, idempotencyKey string) (_ *OrderView, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Create", attribute.Int64("shop.id", shopID))
	defer util.EndSpan(span, &err)

	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.AuthenticatedOrReadOnly, access.Scope{}); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}

	if idempotencyKey == "" || s.idempotency == nil {
		return s.create(ctx, actor, shopID)
	}

	scope := fmt.Sprintf("order:%d:%d", actor.UserID, shopID)
	if view, ok, err := s.replay(ctx, scope, idempotencyKey, shopID); err != nil || ok {
		return view, err
	}

	lockKey := fmt.Sprintf("%s:%s", scope, idempotencyKey)
	acquired, err := s.idempotency.AcquireLock(ctx, lockKey, 30*time.Second)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to acquire idempotency lock")
	}
	if !acquired {
		return nil, apperr.Validation("a request with this Idempotency-Key is already being processed")
	}
	defer func() {
		if err := s.idempotency.ReleaseLock(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release idempotency lock", zap.String("lock", lockKey), zap.Error(err))
		}
	}()

	// the first request may have finished between the lookup and the lock
	if view, ok, err := s.replay(ctx, scope, idempotencyKey, shopID); err != nil || ok {
		return view, err
	}

	view, err := s.create(ctx, actor, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.idempotency.SetIdempotentResult(ctx, scope, idempotencyKey, view.ID, s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to remember idempotent result",
			zap.Int64("order_id", view.ID),
			zap.Error(err))
	}
	return view, nil
}

// Delete removes an order owned by the actor together with its line items.
func (s *OrderService) Delete(ctx context.Context, actor access.Actor, shopID, id int64) (err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Delete", attribute.Int64("order.id", id))
	defer util.EndSpan(span, &err)

	order, err := loadOrderInShop(ctx, s.repo, shopID, id)
	if err != nil {
		return err
	}
	if err := s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ResourceOwner, access.ForResource(access.OwnerOfOrder(order))); err != nil {
		return err
	}
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Order deleted", zap.Int64("order_id", id))
	s.publish(ctx, models.EventTypeOrderDeleted, order)
	return nil
}

func (s *OrderService) create(ctx context.Context, actor access.Actor, shopID int64) (*OrderView, error) {
	clientID := actor.UserID
	order := &models.Order{
		ShopID:   shopID,
		ClientID: &clientID,
		Total:    decimal.Zero,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("shop_id", shopID),
		zap.Int64("client_id", clientID))

	s.publish(ctx, models.EventTypeOrderCreated, order)
	return &OrderView{Order: *order, LineItems: []models.LineItem{}}, nil
}

// replay returns the order remembered for an idempotency key. A remembered
// order that has since been deleted is not replayed.
func (s *OrderService) replay(ctx context.Context, scope, key string, shopID int64) (*OrderView, bool, error) {
	orderID, ok, err := s.idempotency.GetIdempotentResult(ctx, scope, key)
	if err != nil {
		return nil, false, apperr.Persistence(err, "failed to check idempotency key")
	}
	if !ok {
		return nil, false, nil
	}

	view, err := s.Get(ctx, shopID, orderID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	util.OrdersReplayedTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", orderID))
	return view, true, nil
}

func (s *OrderService) withLineItems(ctx context.Context, orders []models.Order) ([]OrderView, error) {
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	items, err := s.repo.LineItemsByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		lineItems := items[order.ID]
		if lineItems == nil {
			lineItems = []models.LineItem{}
		}
		views = append(views, OrderView{Order: order, LineItems: lineItems})
	}
	return views, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	event := &models.OrderEvent{
		BaseEvent: models.NewBaseEvent(eventType),
		ShopID:    order.ShopID,
		OrderID:   order.ID,
		ClientID:  order.ClientID,
	}
	logPublishError(s.logger, eventType, s.events.PublishOrderEvent(ctx, event))
}
