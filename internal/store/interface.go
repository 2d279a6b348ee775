package store

import (
	"context"

	"shop-service/internal/models"
	"shop-service/internal/totals"
)

// Repository is the entity store the services work against. Lookups of a
// single row return an apperr.NotFound error when the row does not exist.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	ListShops(ctx context.Context) ([]models.Shop, error)
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	CreateShop(ctx context.Context, shop *models.Shop) error
	UpdateShop(ctx context.Context, shop *models.Shop) error
	DeleteShop(ctx context.Context, id int64) error
	ProductIDsByShop(ctx context.Context, shopIDs []int64) (map[int64][]int64, error)

	ListProducts(ctx context.Context, shopID int64) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error

	ListOrders(ctx context.Context, shopID int64) ([]models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id int64) error

	ListLineItems(ctx context.Context, orderID int64) ([]models.LineItem, error)
	LineItemsByOrder(ctx context.Context, orderIDs []int64) (map[int64][]models.LineItem, error)
	GetLineItem(ctx context.Context, orderID, id int64) (*models.LineItem, error)

	// InTx runs fn in one serializable transaction. The transaction commits
	// only when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must be atomic with an order total
// recomputation.
type Tx interface {
	totals.Ledger

	// LockOrder loads the order and holds its row until the transaction ends.
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	// LockOrdersWithProduct locks every order that has a line item for the product.
	LockOrdersWithProduct(ctx context.Context, productID int64) ([]models.Order, error)

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	GetLineItem(ctx context.Context, orderID, id int64) (*models.LineItem, error)
	CreateLineItem(ctx context.Context, item *models.LineItem) error
	UpdateLineItemQuantity(ctx context.Context, orderID, id int64, quantity int) error
	DeleteLineItem(ctx context.Context, orderID, id int64) error
}
