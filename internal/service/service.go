package service

import (
	"context"
	"strings"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher is implemented by broker.EventPublisher.
type EventPublisher interface {
	PublishShopEvent(ctx context.Context, event *models.ShopEvent) error
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
	PublishOrderTotalChanged(ctx context.Context, event *models.OrderTotalChangedEvent) error
	PublishUserDeleted(ctx context.Context, event *models.UserDeletedEvent) error
}

// SessionStore is implemented by redisclient.Client.
type SessionStore interface {
	IssueSession(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	RevokeUserSessions(ctx context.Context, userID int64) error
}

// IdempotencyStore is implemented by redisclient.Client.
type IdempotencyStore interface {
	GetIdempotentResult(ctx context.Context, scope, key string) (int64, bool, error)
	SetIdempotentResult(ctx context.Context, scope, key string, id int64, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

const maxNameLength = 100

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("%s: this field may not be blank", field)
	}
	if len(name) > maxNameLength {
		return "", apperr.Validation("%s: ensure this field has no more than %d characters", field, maxNameLength)
	}
	return name, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperr.Validation("price: ensure this value is greater than or equal to 0")
	}
	if !price.Equal(price.Round(models.MoneyPlaces)) {
		return apperr.Validation("price: ensure that there are no more than %d decimal places", models.MoneyPlaces)
	}
	if !models.MoneyInRange(price) {
		return apperr.Validation("price: ensure that there are no more than %d digits in total", models.MoneyDigits)
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity: ensure this value is greater than or equal to 1")
	}
	if quantity > models.MaxQuantity {
		return apperr.Validation("quantity: ensure this value is less than or equal to %d", models.MaxQuantity)
	}
	return nil
}

func required(field string) error {
	return apperr.Validation("%s: this field is required", field)
}

// loadOrderInShop returns NotFound for an order that exists under another shop.
func loadOrderInShop(ctx context.Context, repo store.Repository, shopID, orderID int64) (*models.Order, error) {
	order, err := repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ShopID != shopID {
		return nil, apperr.NotFound("order %d not found in shop %d", orderID, shopID)
	}
	return order, nil
}

func loadProductInShop(ctx context.Context, repo store.Repository, shopID, productID int64) (*models.Product, error) {
	product, err := repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.ShopID != shopID {
		return nil, apperr.NotFound("product %d not found in shop %d", productID, shopID)
	}
	return product, nil
}

// logPublishError records a failed event publication. Events are published
// after commit, so failing to publish never undoes the mutation.
func logPublishError(logger *zap.Logger, eventType string, err error) {
	if err == nil {
		return
	}
	util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
	logger.Error("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
}
