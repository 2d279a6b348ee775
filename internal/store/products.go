package store

import (
	"context"

	"shop-service/internal/models"
)

const productColumns = "id, shop_id, name, description, price"

// ListProducts retrieves the products of a shop
func (s *Store) ListProducts(ctx context.Context, shopID int64) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE shop_id = $1 ORDER BY id", shopID)
	return products, wrap(err, "products of shop %d", shopID)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, wrap(err, "product %d", id)
	}
	return &product, nil
}

// CreateProduct creates a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (shop_id, name, description, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return wrap(s.db.GetContext(ctx, &product.ID, query,
		product.ShopID, product.Name, product.Description, product.Price), "product %q", product.Name)
}

// UpdateProduct updates name, description and price. Existing line items
// keep the price they were created with.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET name = $1, description = $2, price = $3 WHERE id = $4",
		product.Name, product.Description, product.Price, product.ID)
	if err != nil {
		return wrap(err, "product %d", product.ID)
	}
	return expectAffected(res, "product %d", product.ID)
}
