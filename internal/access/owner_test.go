package access

import (
	"testing"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestOwnerIs(t *testing.T) {
	assert.True(t, OwnedBy(1).Is(User(1)))
	assert.False(t, OwnedBy(1).Is(User(2)))
	assert.False(t, OwnedBy(0).Is(Anonymous))
	assert.False(t, NoOwner.Is(User(0)))
	assert.False(t, NoOwner.Is(Anonymous))
}

func TestOwnerResolution(t *testing.T) {
	shop := &models.Shop{ID: 10, OwnerID: 1}
	product := &models.Product{ID: 20, ShopID: 10}
	order := &models.Order{ID: 30, ShopID: 10, ClientID: int64Ptr(2)}
	item := &models.LineItem{ID: 40, OrderID: 30, ProductID: 20}

	assert.Equal(t, OwnedBy(1), OwnerOfShop(shop))
	assert.Equal(t, OwnedBy(1), OwnerOfProduct(product, shop))
	assert.Equal(t, OwnedBy(2), OwnerOfOrder(order))
	assert.Equal(t, OwnedBy(2), OwnerOfLineItem(item, order))
}

func TestOwnerResolutionMismatchedParent(t *testing.T) {
	otherShop := &models.Shop{ID: 11, OwnerID: 1}
	otherOrder := &models.Order{ID: 31, ClientID: int64Ptr(2)}

	assert.Equal(t, NoOwner, OwnerOfProduct(&models.Product{ShopID: 10}, otherShop))
	assert.Equal(t, NoOwner, OwnerOfProduct(&models.Product{ShopID: 10}, nil))
	assert.Equal(t, NoOwner, OwnerOfLineItem(&models.LineItem{OrderID: 30}, otherOrder))
}

func TestOrphanedOrderHasNoOwner(t *testing.T) {
	order := &models.Order{ID: 30, ShopID: 10}
	item := &models.LineItem{ID: 40, OrderID: 30}

	assert.Equal(t, NoOwner, OwnerOfOrder(order))
	assert.Equal(t, NoOwner, OwnerOfLineItem(item, order))

	_, ok := OwnerOfOrder(order).UserID()
	assert.False(t, ok)

	for _, actor := range []Actor{Anonymous, User(0), User(2)} {
		assert.False(t, OwnerOfOrder(order).Is(actor), actor.String())
	}
}
