package api

import (
	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/shopspring/decimal"
)

// money renders amounts with exactly two decimal places, e.g. "29.97".
func money(d decimal.Decimal) string {
	return d.StringFixed(models.MoneyPlaces)
}

type shopPayload struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Owner    int64   `json:"owner"`
	Products []int64 `json:"products"`
}

func newShopPayload(v *service.ShopView) shopPayload {
	return shopPayload{ID: v.ID, Name: v.Name, Owner: v.OwnerID, Products: v.ProductIDs}
}

type productPayload struct {
	ID          int64  `json:"id"`
	Shop        int64  `json:"shop"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

func newProductPayload(p *models.Product) productPayload {
	return productPayload{
		ID:          p.ID,
		Shop:        p.ShopID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
	}
}

type lineItemPayload struct {
	ID       int64  `json:"id"`
	Order    int64  `json:"order"`
	Product  int64  `json:"product"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func newLineItemPayload(li *models.LineItem) lineItemPayload {
	return lineItemPayload{
		ID:       li.ID,
		Order:    li.OrderID,
		Product:  li.ProductID,
		Quantity: li.Quantity,
		Price:    money(li.Price),
	}
}

func newLineItemPayloads(items []models.LineItem) []lineItemPayload {
	out := make([]lineItemPayload, 0, len(items))
	for i := range items {
		out = append(out, newLineItemPayload(&items[i]))
	}
	return out
}

type orderPayload struct {
	ID        int64             `json:"id"`
	Client    *int64            `json:"client"`
	Shop      int64             `json:"shop"`
	Total     string            `json:"total"`
	LineItems []lineItemPayload `json:"line_items"`
}

func newOrderPayload(v *service.OrderView) orderPayload {
	return orderPayload{
		ID:        v.ID,
		Client:    v.ClientID,
		Shop:      v.ShopID,
		Total:     money(v.Total),
		LineItems: newLineItemPayloads(v.LineItems),
	}
}
