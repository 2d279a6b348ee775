package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places prices and totals are stored with.
const MoneyPlaces = 2

// MoneyDigits is the precision of a stored amount, leaving 17 integer digits.
const MoneyDigits = 19

// MaxMoney is the largest amount a price or total column holds.
var MaxMoney = decimal.New(1, MoneyDigits-MoneyPlaces).Sub(decimal.New(1, -MoneyPlaces))

// MoneyInRange reports whether d fits a price or total column.
func MoneyInRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxMoney)
}

// User is an account known to the service. Identity issuance lives elsewhere;
// the service only needs a stable id to attach ownership to.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Shop is owned by the user that created it.
type Shop struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int64     `db:"owner_id" json:"owner"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// Product belongs to exactly one shop.
type Product struct {
	ID          int64           `db:"id" json:"id"`
	ShopID      int64           `db:"shop_id" json:"shop"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// Order belongs to a shop and was placed by a client. ClientID is nil once
// the placing user has been removed.
type Order struct {
	ID       int64           `db:"id" json:"id"`
	ShopID   int64           `db:"shop_id" json:"shop"`
	ClientID *int64          `db:"client_id" json:"client"`
	Total    decimal.Decimal `db:"total" json:"total"`
}

// LineItem references a product of the order's shop. Price is the product
// price captured when the item was created.
type LineItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order"`
	ProductID int64           `db:"product_id" json:"product"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// Subtotal is price times quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// DefaultQuantity is used when a line item is created without a quantity.
const DefaultQuantity = 1

// MaxQuantity is the largest quantity the quantity column holds.
const MaxQuantity = math.MaxInt32
