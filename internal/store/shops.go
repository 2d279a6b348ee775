package store

import (
	"context"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListShops retrieves all shops
func (s *Store) ListShops(ctx context.Context) ([]models.Shop, error) {
	shops := []models.Shop{}
	err := s.db.SelectContext(ctx, &shops, "SELECT id, name, owner_id, created_at FROM shops ORDER BY id")
	return shops, wrap(err, "shops")
}

// GetShop retrieves a shop by ID
func (s *Store) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT id, name, owner_id, created_at FROM shops WHERE id = $1", id)
	if err != nil {
		return nil, wrap(err, "shop %d", id)
	}
	return &shop, nil
}

// CreateShop creates a new shop
func (s *Store) CreateShop(ctx context.Context, shop *models.Shop) error {
	query := `
		INSERT INTO shops (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return wrap(s.db.GetContext(ctx, shop, query, shop.Name, shop.OwnerID), "shop %q", shop.Name)
}

// UpdateShop renames a shop. The owner is immutable.
func (s *Store) UpdateShop(ctx context.Context, shop *models.Shop) error {
	res, err := s.db.ExecContext(ctx, "UPDATE shops SET name = $1 WHERE id = $2", shop.Name, shop.ID)
	if err != nil {
		return wrap(err, "shop %d", shop.ID)
	}
	return expectAffected(res, "shop %d", shop.ID)
}

// DeleteShop removes a shop together with its products, orders and line items.
func (s *Store) DeleteShop(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shops WHERE id = $1", id)
	if err != nil {
		return wrap(err, "shop %d", id)
	}
	return expectAffected(res, "shop %d", id)
}

// ProductIDsByShop returns product ids grouped by shop, in id order.
func (s *Store) ProductIDsByShop(ctx context.Context, shopIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(shopIDs))
	if len(shopIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT id, shop_id FROM products WHERE shop_id IN (?) ORDER BY id", shopIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []struct {
		ID     int64 `db:"id"`
		ShopID int64 `db:"shop_id"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrap(err, "products of shops")
	}

	for _, r := range rows {
		out[r.ShopID] = append(out[r.ShopID], r.ID)
	}
	return out, nil
}
