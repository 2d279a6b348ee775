package store

import (
	"context"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	orderColumns    = "id, shop_id, client_id, total"
	lineItemColumns = "id, order_id, product_id, quantity, price"
)

// ListOrders retrieves the orders of a shop
func (s *Store) ListOrders(ctx context.Context, shopID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE shop_id = $1 ORDER BY id", shopID)
	return orders, wrap(err, "orders of shop %d", shopID)
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, wrap(err, "order %d", id)
	}
	return &order, nil
}

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (shop_id, client_id, total)
		VALUES ($1, $2, $3)
		RETURNING id`

	return wrap(s.db.GetContext(ctx, &order.ID, query,
		order.ShopID, order.ClientID, order.Total), "order for shop %d", order.ShopID)
}

// DeleteOrder removes an order and its line items
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return wrap(err, "order %d", id)
	}
	return expectAffected(res, "order %d", id)
}

// ListLineItems retrieves all items for an order
func (s *Store) ListLineItems(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	items := []models.LineItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+lineItemColumns+" FROM line_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, wrap(err, "line items of order %d", orderID)
}

// LineItemsByOrder retrieves the items of several orders grouped by order.
func (s *Store) LineItemsByOrder(ctx context.Context, orderIDs []int64) (map[int64][]models.LineItem, error) {
	out := make(map[int64][]models.LineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT "+lineItemColumns+" FROM line_items WHERE order_id IN (?) ORDER BY id", orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.LineItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, wrap(err, "line items of orders")
	}

	for _, item := range items {
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, nil
}

// GetLineItem retrieves a line item of an order
func (s *Store) GetLineItem(ctx context.Context, orderID, id int64) (*models.LineItem, error) {
	var item models.LineItem
	err := s.db.GetContext(ctx, &item,
		"SELECT "+lineItemColumns+" FROM line_items WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return nil, wrap(err, "line item %d of order %d", id, orderID)
	}
	return &item, nil
}
