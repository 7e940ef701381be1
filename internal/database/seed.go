// internal/database/seed.go
package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/utils"
)

// SeedInitialData creates the back-office administrator when none exists.
// Without ADMIN_PASSWORD a random password is generated and logged once.
func SeedInitialData(db *gorm.DB, cfg config.AdminConfig, log *logrus.Logger) error {
	log.Info("Seeding initial data...")

	var adminCount int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&adminCount).Error; err != nil {
		return fmt.Errorf("failed to count admin users: %w", err)
	}

	if adminCount > 0 {
		log.Info("Admin user already present, skipping seed")
		return nil
	}

	password := cfg.Password
	generated := false
	if password == "" {
		var err error
		password, err = utils.GenerateRandomString(20)
		if err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
		generated = true
	}

	admin := &models.User{
		Email:   cfg.Email,
		IsAdmin: true,
	}
	if err := admin.SetPassword(password); err != nil {
		return fmt.Errorf("failed to set admin password: %w", err)
	}

	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	entry := log.WithField("email", admin.Email)
	if generated {
		entry = entry.WithField("password", password)
	}
	entry.Info("Default admin user created")

	log.Info("Initial data seeding completed")
	return nil
}
