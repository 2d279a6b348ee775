// Package memstore is an in-memory store.Repository with the same cascade
// and constraint behaviour as the Postgres schema. Transactions hold the
// store's lock for their whole duration and restore a snapshot on failure.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/store"

	"github.com/shopspring/decimal"
)

type state struct {
	users     map[int64]models.User
	shops     map[int64]models.Shop
	products  map[int64]models.Product
	orders    map[int64]models.Order
	lineItems map[int64]models.LineItem
	nextID    int64
}

func newState() state {
	return state{
		users:     map[int64]models.User{},
		shops:     map[int64]models.Shop{},
		products:  map[int64]models.Product{},
		orders:    map[int64]models.Order{},
		lineItems: map[int64]models.LineItem{},
	}
}

func (s state) clone() state {
	c := state{
		users:     make(map[int64]models.User, len(s.users)),
		shops:     make(map[int64]models.Shop, len(s.shops)),
		products:  make(map[int64]models.Product, len(s.products)),
		orders:    make(map[int64]models.Order, len(s.orders)),
		lineItems: make(map[int64]models.LineItem, len(s.lineItems)),
		nextID:    s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.shops {
		c.shops[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lineItems {
		c.lineItems[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state state
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// InTx runs fn under the store lock. On error every write fn made is undone.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&memTx{st: &s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.state.users {
		if u.Username == user.Username {
			return apperr.Validation("user %q: username already exists", user.Username)
		}
	}
	user.ID = s.state.id()
	user.CreatedAt = time.Now().UTC()
	s.state.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.state.users[id]
	if !ok {
		return nil, apperr.NotFound("user %d not found", id)
	}
	return &u, nil
}

// DeleteUser cascades to the user's shops and nulls the client of their orders.
func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.users[id]; !ok {
		return apperr.NotFound("user %d not found", id)
	}
	for shopID, shop := range s.state.shops {
		if shop.OwnerID == id {
			s.state.deleteShop(shopID)
		}
	}
	for orderID, order := range s.state.orders {
		if order.ClientID != nil && *order.ClientID == id {
			order.ClientID = nil
			s.state.orders[orderID] = order
		}
	}
	delete(s.state.users, id)
	return nil
}

// Shops

func (s *Store) ListShops(context.Context) ([]models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shops := make([]models.Shop, 0, len(s.state.shops))
	for _, shop := range s.state.shops {
		shops = append(shops, shop)
	}
	sort.Slice(shops, func(i, j int) bool { return shops[i].ID < shops[j].ID })
	return shops, nil
}

func (s *Store) GetShop(_ context.Context, id int64) (*models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.state.shops[id]
	if !ok {
		return nil, apperr.NotFound("shop %d not found", id)
	}
	return &shop, nil
}

func (s *Store) CreateShop(_ context.Context, shop *models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.users[shop.OwnerID]; !ok {
		return apperr.Validation("shop %q: referenced row does not exist", shop.Name)
	}
	if err := s.state.checkShopName(shop.Name, 0); err != nil {
		return err
	}
	shop.ID = s.state.id()
	shop.CreatedAt = time.Now().UTC()
	s.state.shops[shop.ID] = *shop
	return nil
}

func (s *Store) UpdateShop(_ context.Context, shop *models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.shops[shop.ID]
	if !ok {
		return apperr.NotFound("shop %d not found", shop.ID)
	}
	if err := s.state.checkShopName(shop.Name, shop.ID); err != nil {
		return err
	}
	current.Name = shop.Name
	s.state.shops[shop.ID] = current
	return nil
}

func (s *Store) DeleteShop(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.shops[id]; !ok {
		return apperr.NotFound("shop %d not found", id)
	}
	s.state.deleteShop(id)
	return nil
}

func (s *Store) ProductIDsByShop(_ context.Context, shopIDs []int64) (map[int64][]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[int64]bool, len(shopIDs))
	for _, id := range shopIDs {
		wanted[id] = true
	}
	out := make(map[int64][]int64, len(shopIDs))
	for _, p := range s.state.sortedProducts() {
		if wanted[p.ShopID] {
			out[p.ShopID] = append(out[p.ShopID], p.ID)
		}
	}
	return out, nil
}

// Products

func (s *Store) ListProducts(_ context.Context, shopID int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := []models.Product{}
	for _, p := range s.state.sortedProducts() {
		if p.ShopID == shopID {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.getProduct(id)
}

func (s *Store) CreateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.shops[product.ShopID]; !ok {
		return apperr.Validation("product %q: referenced row does not exist", product.Name)
	}
	if product.Price.IsNegative() {
		return apperr.Validation("product %q: value violates products_price_non_negative", product.Name)
	}
	if !models.MoneyInRange(product.Price) {
		return apperr.Validation("product %q: numeric value out of range", product.Name)
	}
	product.ID = s.state.id()
	s.state.products[product.ID] = *product
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.state.products[product.ID]
	if !ok {
		return apperr.NotFound("product %d not found", product.ID)
	}
	if product.Price.IsNegative() {
		return apperr.Validation("product %d: value violates products_price_non_negative", product.ID)
	}
	if !models.MoneyInRange(product.Price) {
		return apperr.Validation("product %d: numeric value out of range", product.ID)
	}
	current.Name = product.Name
	current.Description = product.Description
	current.Price = product.Price
	s.state.products[product.ID] = current
	return nil
}

// Orders

func (s *Store) ListOrders(_ context.Context, shopID int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []models.Order{}
	for _, o := range s.state.orders {
		if o.ShopID == shopID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.getOrder(id)
}

func (s *Store) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.shops[order.ShopID]; !ok {
		return apperr.Validation("order for shop %d: referenced row does not exist", order.ShopID)
	}
	if order.ClientID != nil {
		if _, ok := s.state.users[*order.ClientID]; !ok {
			return apperr.Validation("order for shop %d: referenced row does not exist", order.ShopID)
		}
	}
	order.ID = s.state.id()
	s.state.orders[order.ID] = *order
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.orders[id]; !ok {
		return apperr.NotFound("order %d not found", id)
	}
	s.state.deleteOrder(id)
	return nil
}

// Line items

func (s *Store) ListLineItems(_ context.Context, orderID int64) ([]models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.lineItemsOf(orderID), nil
}

func (s *Store) LineItemsByOrder(_ context.Context, orderIDs []int64) (map[int64][]models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64][]models.LineItem, len(orderIDs))
	for _, id := range orderIDs {
		if items := s.state.lineItemsOf(id); len(items) > 0 {
			out[id] = items
		}
	}
	return out, nil
}

func (s *Store) GetLineItem(_ context.Context, orderID, id int64) (*models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.getLineItem(orderID, id)
}

// state helpers; callers hold the lock

func (s *state) checkShopName(name string, except int64) error {
	for id, shop := range s.shops {
		if id != except && shop.Name == name {
			return apperr.Validation("shop %q: shops_name_key already exists", name)
		}
	}
	return nil
}

func (s *state) deleteShop(id int64) {
	for productID, p := range s.products {
		if p.ShopID == id {
			s.deleteProduct(productID)
		}
	}
	for orderID, o := range s.orders {
		if o.ShopID == id {
			s.deleteOrder(orderID)
		}
	}
	delete(s.shops, id)
}

func (s *state) deleteProduct(id int64) {
	for itemID, li := range s.lineItems {
		if li.ProductID == id {
			delete(s.lineItems, itemID)
		}
	}
	delete(s.products, id)
}

func (s *state) deleteOrder(id int64) {
	for itemID, li := range s.lineItems {
		if li.OrderID == id {
			delete(s.lineItems, itemID)
		}
	}
	delete(s.orders, id)
}

func (s *state) sortedProducts() []models.Product {
	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (s *state) getProduct(id int64) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("product %d not found", id)
	}
	return &p, nil
}

func (s *state) getOrder(id int64) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %d not found", id)
	}
	return &o, nil
}

func (s *state) getLineItem(orderID, id int64) (*models.LineItem, error) {
	li, ok := s.lineItems[id]
	if !ok || li.OrderID != orderID {
		return nil, apperr.NotFound("line item %d of order %d not found", id, orderID)
	}
	return &li, nil
}

func (s *state) lineItemsOf(orderID int64) []models.LineItem {
	items := []models.LineItem{}
	for _, li := range s.lineItems {
		if li.OrderID == orderID {
			items = append(items, li)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type memTx struct {
	st *state
}

func (t *memTx) LockOrder(_ context.Context, id int64) (*models.Order, error) {
	return t.st.getOrder(id)
}

func (t *memTx) LockOrdersWithProduct(_ context.Context, productID int64) ([]models.Order, error) {
	seen := map[int64]bool{}
	orders := []models.Order{}
	for _, li := range t.st.lineItems {
		if li.ProductID == productID && !seen[li.OrderID] {
			seen[li.OrderID] = true
			orders = append(orders, t.st.orders[li.OrderID])
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (t *memTx) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return t.st.getProduct(id)
}

func (t *memTx) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := t.st.products[id]; !ok {
		return apperr.NotFound("product %d not found", id)
	}
	t.st.deleteProduct(id)
	return nil
}

func (t *memTx) GetLineItem(_ context.Context, orderID, id int64) (*models.LineItem, error) {
	return t.st.getLineItem(orderID, id)
}

func (t *memTx) CreateLineItem(_ context.Context, item *models.LineItem) error {
	if _, ok := t.st.orders[item.OrderID]; !ok {
		return apperr.Validation("line item of order %d: referenced row does not exist", item.OrderID)
	}
	if _, ok := t.st.products[item.ProductID]; !ok {
		return apperr.Validation("line item of order %d: referenced row does not exist", item.OrderID)
	}
	if item.Quantity <= 0 {
		return apperr.Validation("line item of order %d: value violates line_items_quantity_positive", item.OrderID)
	}
	if item.Quantity > models.MaxQuantity {
		return apperr.Validation("line item of order %d: numeric value out of range", item.OrderID)
	}
	item.ID = t.st.id()
	t.st.lineItems[item.ID] = *item
	return nil
}

func (t *memTx) UpdateLineItemQuantity(_ context.Context, orderID, id int64, quantity int) error {
	li, err := t.st.getLineItem(orderID, id)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return apperr.Validation("line item %d of order %d: value violates line_items_quantity_positive", id, orderID)
	}
	if quantity > models.MaxQuantity {
		return apperr.Validation("line item %d of order %d: numeric value out of range", id, orderID)
	}
	li.Quantity = quantity
	t.st.lineItems[id] = *li
	return nil
}

func (t *memTx) DeleteLineItem(_ context.Context, orderID, id int64) error {
	if _, err := t.st.getLineItem(orderID, id); err != nil {
		return err
	}
	delete(t.st.lineItems, id)
	return nil
}

func (t *memTx) LineItemsOf(_ context.Context, orderID int64) ([]models.LineItem, error) {
	return t.st.lineItemsOf(orderID), nil
}

func (t *memTx) SaveOrderTotal(_ context.Context, orderID int64, total decimal.Decimal) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return apperr.Persistence(nil, "order total was not written")
	}
	if !models.MoneyInRange(total) {
		return apperr.Validation("order %d: numeric value out of range", orderID)
	}
	o.Total = total
	t.st.orders[orderID] = o
	return nil
}
