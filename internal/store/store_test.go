package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/totals"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestGetShopNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, owner_id, created_at FROM shops WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "created_at"}))

	_, err := s.GetShop(context.Background(), 9)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShopDuplicateName(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO shops (name, owner_id)")).
		WithArgs("Corner", int64(1)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "shops_name_key"})

	err := s.CreateShop(context.Background(), &models.Shop{Name: "Corner", OwnerID: 1})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "shops_name_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductNumericOverflow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO products (shop_id, name, description, price)")).
		WithArgs(int64(1), "Yacht", "", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "22003", Message: "numeric field overflow"})

	err := s.CreateProduct(context.Background(), &models.Product{
		ShopID: 1,
		Name:   "Yacht",
		Price:  decimal.RequireFromString("100000000000000000.00"),
	})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 400, apperr.HTTPStatus(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteShopMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM shops WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteShop(context.Background(), 3)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.DeleteUser(context.Background(), 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductIDsByShop(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, shop_id FROM products WHERE shop_id IN ($1, $2) ORDER BY id")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id"}).
			AddRow(int64(10), int64(1)).
			AddRow(int64(11), int64(2)).
			AddRow(int64(12), int64(1)))

	ids, err := s.ProductIDsByShop(context.Background(), []int64{1, 2})

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 12}, ids[1])
	assert.Equal(t, []int64{11}, ids[2])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderWithoutClient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, shop_id, client_id, total FROM orders WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "client_id", "total"}).
			AddRow(int64(5), int64(1), nil, "12.50"))

	order, err := s.GetOrder(context.Background(), 5)

	require.NoError(t, err)
	assert.Nil(t, order.ClientID)
	assert.Equal(t, "12.50", order.Total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedOrder(mock sqlmock.Sqlmock, total string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, shop_id, client_id, total FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "client_id", "total"}).
			AddRow(int64(5), int64(1), int64(2), total))
}

func TestInTxCommitsLineItemWithTotal(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectLockedOrder(mock, "0.00")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO line_items (order_id, product_id, quantity, price)")).
		WithArgs(int64(5), int64(7), 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(40)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, order_id, product_id, quantity, price FROM line_items WHERE order_id = $1 ORDER BY id")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price"}).
			AddRow(int64(40), int64(5), int64(7), 3, "9.99"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET total = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var order *models.Order
	err := s.InTx(ctx, func(tx Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, 5)
		if err != nil {
			return err
		}
		item := &models.LineItem{OrderID: 5, ProductID: 7, Quantity: 3, Price: decimal.RequireFromString("9.99")}
		if err := tx.CreateLineItem(ctx, item); err != nil {
			return err
		}
		return totals.Recompute(ctx, tx, order)
	})

	require.NoError(t, err)
	assert.Equal(t, "29.97", order.Total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackWhenTotalFails(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	expectLockedOrder(mock, "29.97")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM line_items WHERE id = $1 AND order_id = $2")).
		WithArgs(int64(40), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, order_id, product_id, quantity, price FROM line_items WHERE order_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET total = $1 WHERE id = $2")).
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	err := s.InTx(ctx, func(tx Tx) error {
		order, err := tx.LockOrder(ctx, 5)
		if err != nil {
			return err
		}
		if err := tx.DeleteLineItem(ctx, 5, 40); err != nil {
			return err
		}
		return totals.Recompute(ctx, tx, order)
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxLockMissingOrder(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "client_id", "total"}))
	mock.ExpectRollback()

	err := s.InTx(ctx, func(tx Tx) error {
		_, err := tx.LockOrder(ctx, 5)
		return err
	})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxBeginFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.InTx(context.Background(), func(tx Tx) error { return nil })

	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsAppliedFiles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")).
		WithArgs("0001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")).
		WithArgs("0002_orders.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs("0002_orders.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := s.Migrate(context.Background(), zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, []string{"0002_orders.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
