// Package totals keeps Order.total equal to the sum of its line items.
package totals

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
)

// Ledger is the view of one order's rows inside the transaction that
// mutated its line items.
type Ledger interface {
	LineItemsOf(ctx context.Context, orderID int64) ([]models.LineItem, error)
	SaveOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
}

// Sum returns the exact sum of price * quantity.
func Sum(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(models.MoneyPlaces)
}

// Recompute reads the order's current line items, writes the sum into
// order.Total and persists it. A sum too large to store is a validation
// failure; anything else is a persistence failure. Either must abort the
// caller's transaction.
func Recompute(ctx context.Context, ledger Ledger, order *models.Order) (err error) {
	ctx, span := util.StartSpan(ctx, "totals.Recompute")
	defer util.EndSpan(span, &err)

	start := time.Now()
	defer func() {
		util.OrderTotalRecomputeLatency.Observe(time.Since(start).Seconds())
	}()

	items, err := ledger.LineItemsOf(ctx, order.ID)
	if err != nil {
		return apperr.Persistence(err, fmt.Sprintf("failed to read line items of order %d", order.ID))
	}

	total := Sum(items)
	if !models.MoneyInRange(total) {
		return apperr.Validation("total: order %d would exceed %s", order.ID, models.MaxMoney.StringFixed(models.MoneyPlaces))
	}
	if err := ledger.SaveOrderTotal(ctx, order.ID, total); err != nil {
		return apperr.Persistence(err, fmt.Sprintf("failed to persist total of order %d", order.ID))
	}

	order.Total = total
	return nil
}
