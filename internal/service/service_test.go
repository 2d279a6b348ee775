package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"shop-service/internal/access"
	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/store/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	mu     sync.Mutex
	types  []string
	totals []*models.OrderTotalChangedEvent
	fail   bool
}

func (r *recordedEvents) record(eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	if r.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (r *recordedEvents) PublishShopEvent(_ context.Context, e *models.ShopEvent) error {
	return r.record(e.EventType)
}

func (r *recordedEvents) PublishProductEvent(_ context.Context, e *models.ProductEvent) error {
	return r.record(e.EventType)
}

func (r *recordedEvents) PublishOrderEvent(_ context.Context, e *models.OrderEvent) error {
	return r.record(e.EventType)
}

func (r *recordedEvents) PublishOrderTotalChanged(_ context.Context, e *models.OrderTotalChangedEvent) error {
	r.mu.Lock()
	r.totals = append(r.totals, e)
	r.mu.Unlock()
	return r.record(e.EventType)
}

func (r *recordedEvents) PublishUserDeleted(_ context.Context, e *models.UserDeletedEvent) error {
	return r.record(e.EventType)
}

type memIdempotency struct {
	mu      sync.Mutex
	results map[string]int64
	locks   map[string]bool
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{results: map[string]int64{}, locks: map[string]bool{}}
}

func (m *memIdempotency) GetIdempotentResult(_ context.Context, scope, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.results[scope+":"+key]
	return id, ok, nil
}

func (m *memIdempotency) SetIdempotentResult(_ context.Context, scope, key string, id int64, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[scope+":"+key] = id
	return nil
}

func (m *memIdempotency) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[lockKey] {
		return false, nil
	}
	m.locks[lockKey] = true
	return true, nil
}

func (m *memIdempotency) ReleaseLock(_ context.Context, lockKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]int64
}

func (m *memSessions) IssueSession(_ context.Context, userID int64, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]int64{}
	}
	token := fmt.Sprintf("token-%d-%d", userID, len(m.sessions))
	m.sessions[token] = userID
	return token, nil
}

func (m *memSessions) RevokeUserSessions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, id := range m.sessions {
		if id == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

// failingTotals makes every order total write inside a transaction fail.
type failingTotals struct {
	store.Repository
}

func (f failingTotals) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Repository.InTx(ctx, func(tx store.Tx) error {
		return fn(failingTotalsTx{tx})
	})
}

type failingTotalsTx struct {
	store.Tx
}

func (failingTotalsTx) SaveOrderTotal(context.Context, int64, decimal.Decimal) error {
	return errors.New("disk full")
}

type env struct {
	repo     *memstore.Store
	events   *recordedEvents
	sessions *memSessions

	shops     *ShopService
	products  *ProductService
	orders    *OrderService
	lineItems *LineItemService
	users     *UserService

	owner, client, stranger access.Actor
}

func newEnv(t *testing.T, policy access.Policy) *env {
	t.Helper()
	repo := memstore.New()
	e := &env{
		repo:     repo,
		events:   &recordedEvents{},
		sessions: &memSessions{},
	}
	evaluator := access.NewEvaluator(repo, policy)
	e.shops = NewShopService(repo, evaluator, e.events)
	e.products = NewProductService(repo, evaluator, e.events)
	e.orders = NewOrderService(repo, evaluator, newMemIdempotency(), time.Hour, e.events)
	e.lineItems = NewLineItemService(repo, evaluator, e.events)
	e.users = NewUserService(repo, e.sessions, time.Hour, e.events)

	ctx := context.Background()
	names := []string{"owner", "client", "stranger"}
	for i, actor := range []*access.Actor{&e.owner, &e.client, &e.stranger} {
		user, err := e.users.Create(ctx, names[i])
		require.NoError(t, err)
		*actor = access.User(user.ID)
	}
	return e
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func int64Ptr(i int64) *int64 { return &i }

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (e *env) shop(t *testing.T, name string) *ShopView {
	t.Helper()
	shop, err := e.shops.Create(context.Background(), e.owner, &ShopRequest{Name: strPtr(name)})
	require.NoError(t, err)
	return shop
}

func (e *env) product(t *testing.T, shopID int64, name, p string) *models.Product {
	t.Helper()
	product, err := e.products.Create(context.Background(), e.owner, shopID, &ProductRequest{Name: strPtr(name), Price: price(p)})
	require.NoError(t, err)
	return product
}

func (e *env) order(t *testing.T, shopID int64) *OrderView {
	t.Helper()
	order, err := e.orders.Create(context.Background(), e.client, shopID, "")
	require.NoError(t, err)
	return order
}

func (e *env) total(t *testing.T, orderID int64) string {
	t.Helper()
	order, err := e.repo.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order.Total.StringFixed(models.MoneyPlaces)
}
