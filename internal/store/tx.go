package store

import (
	"context"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type pgTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*pgTx)(nil)

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, wrap(err, "order %d", id)
	}
	return &order, nil
}

func (t *pgTx) LockOrdersWithProduct(ctx context.Context, productID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := t.tx.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders
		WHERE id IN (SELECT order_id FROM line_items WHERE product_id = $1)
		ORDER BY id
		FOR UPDATE`, productID)
	return orders, wrap(err, "orders with product %d", productID)
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, wrap(err, "product %d", id)
	}
	return &product, nil
}

// DeleteProduct removes the product; its line items go with it.
func (t *pgTx) DeleteProduct(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return wrap(err, "product %d", id)
	}
	return expectAffected(res, "product %d", id)
}

func (t *pgTx) GetLineItem(ctx context.Context, orderID, id int64) (*models.LineItem, error) {
	var item models.LineItem
	err := t.tx.GetContext(ctx, &item,
		"SELECT "+lineItemColumns+" FROM line_items WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return nil, wrap(err, "line item %d of order %d", id, orderID)
	}
	return &item, nil
}

func (t *pgTx) CreateLineItem(ctx context.Context, item *models.LineItem) error {
	query := `
		INSERT INTO line_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return wrap(t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price), "line item of order %d", item.OrderID)
}

func (t *pgTx) UpdateLineItemQuantity(ctx context.Context, orderID, id int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE line_items SET quantity = $1 WHERE id = $2 AND order_id = $3", quantity, id, orderID)
	if err != nil {
		return wrap(err, "line item %d of order %d", id, orderID)
	}
	return expectAffected(res, "line item %d of order %d", id, orderID)
}

func (t *pgTx) DeleteLineItem(ctx context.Context, orderID, id int64) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM line_items WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return wrap(err, "line item %d of order %d", id, orderID)
	}
	return expectAffected(res, "line item %d of order %d", id, orderID)
}

func (t *pgTx) LineItemsOf(ctx context.Context, orderID int64) ([]models.LineItem, error) {
	items := []models.LineItem{}
	err := t.tx.SelectContext(ctx, &items,
		"SELECT "+lineItemColumns+" FROM line_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, wrap(err, "line items of order %d", orderID)
}

func (t *pgTx) SaveOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE orders SET total = $1 WHERE id = $2", total, orderID)
	if err != nil {
		return wrap(err, "order %d", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence(err, "failed to read affected rows")
	}
	if n != 1 {
		return apperr.Persistence(nil, "order total was not written")
	}
	return nil
}
