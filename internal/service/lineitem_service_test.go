package service

import (
	"context"
	"sync"
	"testing"

	"shop-service/internal/access"
	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/totals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemTotalsFollowMutations(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "9.99")
	order := e.order(t, shop.ID)
	assert.Equal(t, "0.00", e.total(t, order.ID))

	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID, Quantity: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, "9.99", item.Price.StringFixed(2))
	assert.Equal(t, "29.97", e.total(t, order.ID))

	require.NoError(t, e.lineItems.Delete(ctx, e.client, shop.ID, order.ID, item.ID))
	assert.Equal(t, "0.00", e.total(t, order.ID))

	require.Len(t, e.events.totals, 2)
	assert.Equal(t, "29.97", e.events.totals[0].Total.StringFixed(2))
	assert.Equal(t, opDelete, e.events.totals[1].Operation)
}

func TestLineItemDefaultQuantity(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "2.50")
	order := e.order(t, shop.ID)

	item, err := e.lineItems.Create(context.Background(), e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultQuantity, item.Quantity)
	assert.Equal(t, "2.50", e.total(t, order.ID))
}

func TestLineItemRejectsProductOfAnotherShop(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	s1 := e.shop(t, "S1")
	s2 := e.shop(t, "S2")
	own := e.product(t, s1.ID, "P1", "1.00")
	foreign := e.product(t, s2.ID, "P2", "5.00")
	order := e.order(t, s1.ID)

	_, err := e.lineItems.Create(ctx, e.client, s1.ID, order.ID, &CreateLineItemRequest{Product: &own.ID})
	require.NoError(t, err)

	_, err = e.lineItems.Create(ctx, e.client, s1.ID, order.ID, &CreateLineItemRequest{Product: &foreign.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	items, err := e.repo.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "1.00", e.total(t, order.ID))
}

func TestLineItemCreateValidation(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "1.00")
	order := e.order(t, shop.ID)

	cases := map[string]*CreateLineItemRequest{
		"missing product":  {Quantity: intPtr(1)},
		"unknown product":  {Product: int64Ptr(9999)},
		"zero quantity":    {Product: &mug.ID, Quantity: intPtr(0)},
		"negative":         {Product: &mug.ID, Quantity: intPtr(-2)},
		"quantity too big": {Product: &mug.ID, Quantity: intPtr(models.MaxQuantity + 1)},
	}
	for name, req := range cases {
		_, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, req)
		assert.ErrorIs(t, err, apperr.ErrValidation, name)
	}
	assert.Equal(t, "0.00", e.total(t, order.ID))
}

func TestLineItemPriceIsCapturedAtCreation(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "4.00")
	order := e.order(t, shop.ID)

	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID, Quantity: intPtr(2)})
	require.NoError(t, err)

	_, err = e.products.Update(ctx, e.owner, shop.ID, mug.ID, &ProductRequest{Price: price("10.00")}, true)
	require.NoError(t, err)

	updated, err := e.lineItems.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{Quantity: intPtr(5)}, false)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "4.00", updated.Price.StringFixed(2))
	assert.Equal(t, "20.00", e.total(t, order.ID))
}

func TestLineItemFullUpdateRequiresQuantity(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "4.00")
	order := e.order(t, shop.ID)
	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	require.NoError(t, err)

	_, err = e.lineItems.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{}, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	same, err := e.lineItems.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, same.Quantity)
}

func TestLineItemTotalWriteFailureRollsBack(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "3.00")
	order := e.order(t, shop.ID)
	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	require.NoError(t, err)

	events := &recordedEvents{}
	broken := NewLineItemService(failingTotals{e.repo}, access.NewEvaluator(e.repo, access.PolicyPermissiveRead), events)

	_, err = broken.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID, Quantity: intPtr(4)})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = broken.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{Quantity: intPtr(7)}, false)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	err = broken.Delete(ctx, e.client, shop.ID, order.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	items, err := e.repo.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "3.00", e.total(t, order.ID))
	assert.Empty(t, events.totals)
}

func TestLineItemAccessStrictPolicy(t *testing.T) {
	e := newEnv(t, access.PolicyStrict)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "1.00")
	order := e.order(t, shop.ID)

	_, err := e.lineItems.Create(ctx, e.owner, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = e.lineItems.List(ctx, e.owner, shop.ID, order.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = e.lineItems.List(ctx, e.client, shop.ID, order.ID)
	assert.NoError(t, err)

	_, err = e.lineItems.List(ctx, access.Anonymous, shop.ID, order.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestLineItemAccessPermissiveRead(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "1.00")
	order := e.order(t, shop.ID)
	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	require.NoError(t, err)

	got, err := e.lineItems.Get(ctx, e.owner, shop.ID, order.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	err = e.lineItems.Delete(ctx, e.owner, shop.ID, order.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = e.lineItems.List(ctx, e.stranger, shop.ID, order.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestLineItemMissingParentsAreNotFound(t *testing.T) {
	e := newEnv(t, access.PolicyStrict)
	ctx := context.Background()
	s1 := e.shop(t, "S1")
	s2 := e.shop(t, "S2")
	order := e.order(t, s1.ID)

	_, err := e.lineItems.List(ctx, e.stranger, s1.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// an order addressed through the wrong shop does not exist there
	_, err = e.lineItems.List(ctx, e.client, s2.ID, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.lineItems.Get(ctx, e.client, s1.ID, order.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOrphanedOrderLineItemsAreReadOnly(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "1.00")
	order := e.order(t, shop.ID)

	require.NoError(t, e.users.Delete(ctx, e.client.UserID))

	orphan, err := e.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.ClientID)

	for _, actor := range []access.Actor{e.client, e.owner, e.stranger} {
		_, err := e.lineItems.Create(ctx, actor, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
		assert.ErrorIs(t, err, apperr.ErrPermissionDenied, actor.String())
	}
}

func TestLineItemTotalOverflowIsRejected(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	yacht := e.product(t, shop.ID, "Y", "99999999999999999.99")
	order := e.order(t, shop.ID)

	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &yacht.ID})
	require.NoError(t, err)

	_, err = e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &yacht.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.lineItems.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{Quantity: intPtr(2)}, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	items, err := e.repo.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "99999999999999999.99", e.total(t, order.ID))
}

func TestLineItemPartialUpdateWithoutQuantityChangesNothing(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "4.00")
	order := e.order(t, shop.ID)
	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID, Quantity: intPtr(2)})
	require.NoError(t, err)
	require.Len(t, e.events.totals, 1)

	same, err := e.lineItems.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{}, true)
	require.NoError(t, err)
	assert.Equal(t, *item, *same)
	assert.Len(t, e.events.totals, 1)

	_, err = e.lineItems.Update(ctx, e.client, shop.ID, order.ID, 9999, &UpdateLineItemRequest{}, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// orphanedOnLock hands out locked orders whose client has been removed, as
// if the user was deleted between the permission check and the lock.
type orphanedOnLock struct {
	store.Repository
}

func (o orphanedOnLock) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return o.Repository.InTx(ctx, func(tx store.Tx) error {
		return fn(orphanedTx{tx})
	})
}

type orphanedTx struct {
	store.Tx
}

func (t orphanedTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := t.Tx.LockOrder(ctx, id)
	if err == nil {
		order.ClientID = nil
	}
	return order, err
}

func TestLineItemOwnershipIsRecheckedUnderLock(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	mug := e.product(t, shop.ID, "P", "3.00")
	order := e.order(t, shop.ID)
	item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	require.NoError(t, err)

	events := &recordedEvents{}
	racing := NewLineItemService(orphanedOnLock{e.repo}, access.NewEvaluator(e.repo, access.PolicyPermissiveRead), events)

	_, err = racing.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &mug.ID})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = racing.Update(ctx, e.client, shop.ID, order.ID, item.ID, &UpdateLineItemRequest{Quantity: intPtr(5)}, false)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	err = racing.Delete(ctx, e.client, shop.ID, order.ID, item.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	items, err := e.repo.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "3.00", e.total(t, order.ID))
	assert.Empty(t, events.totals)
}

func TestConcurrentLineItemMutationsKeepTotal(t *testing.T) {
	e := newEnv(t, access.PolicyPermissiveRead)
	ctx := context.Background()
	shop := e.shop(t, "S")
	dime := e.product(t, shop.ID, "P", "0.10")
	order := e.order(t, shop.ID)

	existing := make([]*models.LineItem, 10)
	for i := range existing {
		item, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &dime.ID})
		require.NoError(t, err)
		existing[i] = item
	}

	const creates = 50
	errs := make(chan error, creates+len(existing))
	var wg sync.WaitGroup
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.lineItems.Create(ctx, e.client, shop.ID, order.ID, &CreateLineItemRequest{Product: &dime.ID})
			errs <- err
		}()
	}
	for i, item := range existing {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := e.lineItems.Update(ctx, e.client, shop.ID, order.ID, id, &UpdateLineItemRequest{Quantity: intPtr(3)}, false)
				errs <- err
				return
			}
			errs <- e.lineItems.Delete(ctx, e.client, shop.ID, order.ID, id)
		}(i, item.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	items, err := e.repo.ListLineItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, items, creates+len(existing)/2)
	assert.Equal(t, totals.Sum(items).StringFixed(models.MoneyPlaces), e.total(t, order.ID))
	assert.Equal(t, "6.50", e.total(t, order.ID))
}
