// internal/services/catalog_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// Storefront shelves show at most this many products.
const shelfSize = 6

// CatalogService answers the read-side product queries.
type CatalogService struct {
	db  *gorm.DB
	log *logrus.Logger
}

// AdminProductRow is one line of the back-office product table.
type AdminProductRow struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	PriceInCents         int       `json:"price_in_cents"`
	AvailableForPurchase bool      `json:"available_for_purchase"`
	OrderCount           int64     `json:"order_count"`
	// Products that have been ordered cannot be deleted.
	Deletable bool `json:"deletable"`
}

var adminSortColumns = map[string]string{
	"name":           "products.name",
	"price_in_cents": "products.price_in_cents",
	"created_at":     "products.created_at",
	"order_count":    "order_count",
}

func NewCatalogService(db *gorm.DB, log *logrus.Logger) *CatalogService {
	return &CatalogService{db: db, log: log}
}

// AvailableProducts lists every purchasable product by name.
func (s *CatalogService) AvailableProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("available_for_purchase = ?", true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return s.withTags(ctx, products)
}

// PopularProducts returns the most ordered purchasable products.
func (s *CatalogService) PopularProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*, COUNT(order_items.id) AS order_count").
		Joins("LEFT JOIN order_items ON order_items.product_id = products.id").
		Where("products.available_for_purchase = ?", true).
		Group("products.id").
		Order("order_count DESC, products.name ASC").
		Limit(shelfSize).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list popular products: %w", err)
	}
	return s.withTags(ctx, products)
}

// RecentProducts returns the newest purchasable products.
func (s *CatalogService) RecentProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("available_for_purchase = ?", true).
		Order("created_at DESC").
		Limit(shelfSize).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent products: %w", err)
	}
	return s.withTags(ctx, products)
}

// AvailableProduct loads a purchasable product for the storefront detail page.
func (s *CatalogService) AvailableProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	db := s.db.WithContext(ctx)

	var products []models.Product
	err := db.Where("id = ? AND available_for_purchase = ?", id, true).Limit(1).Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}

	tagged, err := s.withTags(ctx, products)
	if err != nil {
		return nil, err
	}
	return &tagged[0], nil
}

// AdminProducts pages through every product with its order count.
func (s *CatalogService) AdminProducts(ctx context.Context, params utils.PaginationParams) ([]AdminProductRow, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.Product{})
	if params.Search != "" {
		base = base.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(params.Search)+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	sortParams := params
	if column, ok := adminSortColumns[params.Sort]; ok {
		sortParams.Sort = column
	}
	allowed := make([]string, 0, len(adminSortColumns))
	for _, column := range adminSortColumns {
		allowed = append(allowed, column)
	}

	query := base.Session(&gorm.Session{}).
		Select("products.id, products.name, products.description, products.price_in_cents, " +
			"products.available_for_purchase, COUNT(order_items.id) AS order_count").
		Joins("LEFT JOIN order_items ON order_items.product_id = products.id").
		Group("products.id")
	query = utils.ApplySort(query, sortParams, allowed, "products.name")
	query = utils.ApplyPagination(query, params)

	rows := []AdminProductRow{}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list admin products: %w", err)
	}
	for i := range rows {
		rows[i].Deletable = rows[i].OrderCount == 0
	}
	return rows, total, nil
}

func (s *CatalogService) withTags(ctx context.Context, products []models.Product) ([]models.Product, error) {
	if len(products) == 0 {
		return []models.Product{}, nil
	}

	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	byProduct, err := loadTagsByProduct(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load product tags: %w", err)
	}

	for i := range products {
		products[i].Tags = byProduct[products[i].ID]
		if products[i].Tags == nil {
			products[i].Tags = []models.Tag{}
		}
	}
	return products, nil
}
