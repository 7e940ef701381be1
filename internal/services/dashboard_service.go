// internal/services/dashboard_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/models"
)

type DashboardService struct {
	db *gorm.DB
}

type DashboardStats struct {
	Sales     SalesStats     `json:"sales"`
	Customers CustomerStats  `json:"customers"`
	Products  InventoryStats `json:"products"`
}

type SalesStats struct {
	AmountInCents          int64 `json:"amount_in_cents"`
	NumberOfSales          int64 `json:"number_of_sales"`
	AmountThisMonthInCents int64 `json:"amount_this_month_in_cents"`
}

type CustomerStats struct {
	Count                      int64 `json:"count"`
	AverageValuePerUserInCents int64 `json:"average_value_per_user_in_cents"`
}

type InventoryStats struct {
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

func (s *DashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	// Sales statistics
	if err := db.Model(&models.Order{}).
		Select("COALESCE(SUM(price_paid_in_cents), 0)").
		Scan(&stats.Sales.AmountInCents).Error; err != nil {
		return nil, fmt.Errorf("failed to sum sales: %w", err)
	}
	if err := db.Model(&models.Order{}).Count(&stats.Sales.NumberOfSales).Error; err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}
	if err := db.Model(&models.Order{}).
		Where("created_at >= ?", monthStart).
		Select("COALESCE(SUM(price_paid_in_cents), 0)").
		Scan(&stats.Sales.AmountThisMonthInCents).Error; err != nil {
		return nil, fmt.Errorf("failed to sum monthly sales: %w", err)
	}

	// Customer statistics
	if err := db.Model(&models.User{}).Where("is_admin = ?", false).Count(&stats.Customers.Count).Error; err != nil {
		return nil, fmt.Errorf("failed to count customers: %w", err)
	}
	if stats.Customers.Count > 0 {
		stats.Customers.AverageValuePerUserInCents = stats.Sales.AmountInCents / stats.Customers.Count
	}

	// Product statistics
	if err := db.Model(&models.Product{}).Where("available_for_purchase = ?", true).Count(&stats.Products.Active).Error; err != nil {
		return nil, fmt.Errorf("failed to count active products: %w", err)
	}
	if err := db.Model(&models.Product{}).Where("available_for_purchase = ?", false).Count(&stats.Products.Inactive).Error; err != nil {
		return nil, fmt.Errorf("failed to count inactive products: %w", err)
	}

	return stats, nil
}
