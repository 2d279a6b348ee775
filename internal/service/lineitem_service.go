package service

import (
	"context"

	"shop-service/internal/access"
	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/totals"
	"shop-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// LineItemService mutates line items and keeps the order total in step with
// them. Every mutation and its recomputation share one transaction.
type LineItemService struct {
	repo      store.Repository
	evaluator *access.Evaluator
	events    EventPublisher
	logger    *zap.Logger
}

func NewLineItemService(repo store.Repository, evaluator *access.Evaluator, events EventPublisher) *LineItemService {
	return &LineItemService{
		repo:      repo,
		evaluator: evaluator,
		events:    events,
		logger:    util.Component("lineitem-service"),
	}
}

// CreateLineItemRequest is the body of a line item create. Price is never
// accepted from the client.
type CreateLineItemRequest struct {
	Product  *int64 `json:"product"`
	Quantity *int   `json:"quantity"`
}

// UpdateLineItemRequest is the body of a line item update. Only the quantity
// is writable.
type UpdateLineItemRequest struct {
	Quantity *int `json:"quantity"`
}

// List returns the line items of an order.
func (s *LineItemService) List(ctx context.Context, actor access.Actor, shopID, orderID int64) (_ []models.LineItem, err error) {
	ctx, span := util.StartSpan(ctx, "LineItemService.List", attribute.Int64("order.id", orderID))
	defer util.EndSpan(span, &err)

	if err := s.authorize(ctx, actor, access.Safe, shopID, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListLineItems(ctx, orderID)
}

// Get returns one line item of an order.
func (s *LineItemService) Get(ctx context.Context, actor access.Actor, shopID, orderID, id int64) (_ *models.LineItem, err error) {
	ctx, span := util.StartSpan(ctx, "LineItemService.Get", attribute.Int64("line_item.id", id))
	defer util.EndSpan(span, &err)

	if err := s.authorize(ctx, actor, access.Safe, shopID, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetLineItem(ctx, orderID, id)
}

// Create adds a product of the order's shop to the order. The item captures
// the product's current price.
func (s *LineItemService) Create(ctx context.Context, actor access.Actor, shopID, orderID int64, req *CreateLineItemRequest) (_ *models.LineItem, err error) {
	ctx, span := util.StartSpan(ctx, "LineItemService.Create", attribute.Int64("order.id", orderID))
	defer util.EndSpan(span, &err)
	defer s.observe(opCreate, &err)

	if err := s.authorize(ctx, actor, access.Unsafe, shopID, orderID); err != nil {
		return nil, err
	}
	if req.Product == nil {
		return nil, required("product")
	}
	quantity := models.DefaultQuantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var (
		item  *models.LineItem
		order *models.Order
	)
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := s.authorizeLocked(ctx, actor, order); err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, *req.Product)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("product: invalid pk %d, object does not exist", *req.Product)
		}
		if err != nil {
			return err
		}
		if product.ShopID != order.ShopID {
			return apperr.Validation("product: product %d does not belong to the shop of order %d", product.ID, order.ID)
		}

		item = &models.LineItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  quantity,
			Price:     product.Price,
		}
		if err := tx.CreateLineItem(ctx, item); err != nil {
			return err
		}
		return totals.Recompute(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Line item created",
		zap.Int64("order_id", orderID),
		zap.Int64("line_item_id", item.ID),
		zap.String("total", order.Total.StringFixed(models.MoneyPlaces)))

	s.publishTotal(ctx, order, item.ID, opCreate)
	return item, nil
}

// Update changes the quantity of a line item. The captured price stays.
func (s *LineItemService) Update(ctx context.Context, actor access.Actor, shopID, orderID, id int64, req *UpdateLineItemRequest, partial bool) (_ *models.LineItem, err error) {
	ctx, span := util.StartSpan(ctx, "LineItemService.Update", attribute.Int64("line_item.id", id))
	defer util.EndSpan(span, &err)
	defer s.observe(opUpdate, &err)

	if err := s.authorize(ctx, actor, access.Unsafe, shopID, orderID); err != nil {
		return nil, err
	}
	if req.Quantity == nil {
		if !partial {
			return nil, required("quantity")
		}
		return s.repo.GetLineItem(ctx, orderID, id)
	}
	if err := validateQuantity(*req.Quantity); err != nil {
		return nil, err
	}

	var (
		item  *models.LineItem
		order *models.Order
	)
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := s.authorizeLocked(ctx, actor, order); err != nil {
			return err
		}
		if item, err = tx.GetLineItem(ctx, orderID, id); err != nil {
			return err
		}
		if err := tx.UpdateLineItemQuantity(ctx, orderID, id, *req.Quantity); err != nil {
			return err
		}
		item.Quantity = *req.Quantity
		return totals.Recompute(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.publishTotal(ctx, order, item.ID, opUpdate)
	return item, nil
}

// Delete removes a line item from its order.
func (s *LineItemService) Delete(ctx context.Context, actor access.Actor, shopID, orderID, id int64) (err error) {
	ctx, span := util.StartSpan(ctx, "LineItemService.Delete", attribute.Int64("line_item.id", id))
	defer util.EndSpan(span, &err)
	defer s.observe(opDelete, &err)

	if err := s.authorize(ctx, actor, access.Unsafe, shopID, orderID); err != nil {
		return err
	}

	var order *models.Order
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := s.authorizeLocked(ctx, actor, order); err != nil {
			return err
		}
		if err := tx.DeleteLineItem(ctx, orderID, id); err != nil {
			return err
		}
		return totals.Recompute(ctx, tx, order)
	})
	if err != nil {
		return err
	}

	s.publishTotal(ctx, order, id, opDelete)
	return nil
}

// authorize resolves the order under the shop in the path before the
// ownership check, so a missing parent is reported as not found.
func (s *LineItemService) authorize(ctx context.Context, actor access.Actor, verb access.Verb, shopID, orderID int64) error {
	if _, err := loadOrderInShop(ctx, s.repo, shopID, orderID); err != nil {
		return err
	}
	return s.evaluator.Authorize(ctx, actor, verb, access.OrderScoped, access.ForOrder(orderID))
}

// authorizeLocked repeats the write check against the locked order row. Its
// client may have been removed after authorize read it.
func (s *LineItemService) authorizeLocked(ctx context.Context, actor access.Actor, order *models.Order) error {
	return s.evaluator.Authorize(ctx, actor, access.Unsafe, access.ResourceOwner, access.ForResource(access.OwnerOfOrder(order)))
}

func (s *LineItemService) observe(operation string, errp *error) {
	if *errp != nil {
		util.LineItemMutationsFailed.WithLabelValues(operation, apperr.KindOf(*errp).String()).Inc()
		return
	}
	util.LineItemMutationsTotal.WithLabelValues(operation).Inc()
}

func (s *LineItemService) publishTotal(ctx context.Context, order *models.Order, lineItemID int64, operation string) {
	event := &models.OrderTotalChangedEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderTotalChanged),
		ShopID:     order.ShopID,
		OrderID:    order.ID,
		LineItemID: lineItemID,
		Operation:  operation,
		Total:      order.Total,
	}
	logPublishError(s.logger, event.EventType, s.events.PublishOrderTotalChanged(ctx, event))
}
