// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/storefront-backend/internal/database"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/utils"
)

const (
	assetDeleteAttempts = 3
	assetDeleteBackoff  = 200 * time.Millisecond
	assetDeleteTimeout  = 30 * time.Second
)

// ProductService runs the product write pipeline: normalize, validate,
// upload, persist with tags, then invalidate the affected views.
type ProductService struct {
	db     *gorm.DB
	assets AssetStore
	tags   *TagService
	views  ViewInvalidator
	log    *logrus.Logger

	// Background blob deletions still running.
	pending sync.WaitGroup
}

func NewProductService(db *gorm.DB, assets AssetStore, tags *TagService, views ViewInvalidator, log *logrus.Logger) *ProductService {
	return &ProductService{
		db:     db,
		assets: assets,
		tags:   tags,
		views:  views,
		log:    log,
	}
}

func (s *ProductService) Create(ctx context.Context, sub FormSubmission) (*models.Product, error) {
	input, err := s.parse(sub, ImageRequired)
	if err != nil {
		return nil, err
	}

	address, err := s.upload(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:                 input.Name,
		Description:          input.Description,
		PriceInCents:         input.PriceInCents,
		ImageSource:          address,
		AvailableForPurchase: input.AvailableForPurchase,
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return &PersistenceError{Op: "insert product", Err: err}
		}

		tags, err := s.tags.Resolve(ctx, tx, input.Tags)
		if err != nil {
			return &PersistenceError{Op: "resolve tags", Err: err}
		}
		if err := insertProductTags(tx, product.ID, TagIDs(tags)); err != nil {
			return err
		}
		product.Tags = tags
		return nil
	})
	if err != nil {
		s.deleteAssetAsync(address)
		return nil, s.writeFailed("create", uuid.Nil, err)
	}

	s.views.Revalidate(ViewProducts, ViewStorefront, ViewAdminProducts)

	s.log.WithFields(logrus.Fields{
		"product_id": product.ID,
		"tags":       product.TagNames(),
	}).Info("Product created")
	return product, nil
}

// Update replaces every field of product id. A submission without a
// non-empty image keeps the current image.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, sub FormSubmission) (*models.Product, error) {
	input, err := s.parse(sub, ImageOptional)
	if err != nil {
		return nil, err
	}

	var existing models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, s.writeFailed("update", id, &PersistenceError{Op: "load product", Err: err})
	}

	var uploaded string
	if input.Image != nil {
		uploaded, err = s.upload(ctx, input.Image)
		if err != nil {
			return nil, err
		}
	}

	var product models.Product
	var replaced string
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		// The image being replaced is the one committed when the row is locked,
		// not the one seen before the upload.
		var current models.Product
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return &PersistenceError{Op: "lock product", Err: err}
		}

		fields := map[string]interface{}{
			"name":                   input.Name,
			"description":            input.Description,
			"price_in_cents":         input.PriceInCents,
			"available_for_purchase": input.AvailableForPurchase,
		}
		if uploaded != "" {
			fields["image_source"] = uploaded
			replaced = current.ImageSource
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return &PersistenceError{Op: "update product", Err: err}
		}

		tags, err := s.tags.Resolve(ctx, tx, input.Tags)
		if err != nil {
			return &PersistenceError{Op: "resolve tags", Err: err}
		}

		var linked []uuid.UUID
		if err := tx.Model(&models.ProductTag{}).Where("product_id = ?", id).Pluck("tag_id", &linked).Error; err != nil {
			return &PersistenceError{Op: "load product tags", Err: err}
		}

		added, removed := DiffTagIDs(linked, TagIDs(tags))
		if len(removed) > 0 {
			err := tx.Where("product_id = ? AND tag_id IN ?", id, removed).Delete(&models.ProductTag{}).Error
			if err != nil {
				return &PersistenceError{Op: "delete product tags", Err: err}
			}
		}
		if err := insertProductTags(tx, id, added); err != nil {
			return err
		}

		if err := tx.Where("id = ?", id).First(&product).Error; err != nil {
			return &PersistenceError{Op: "reload product", Err: err}
		}
		product.Tags = tags

		s.log.WithFields(logrus.Fields{
			"product_id": id,
			"added":      len(added),
			"removed":    len(removed),
		}).Debug("Product tags reconciled")
		return nil
	})
	if err != nil {
		if uploaded != "" {
			s.deleteAssetAsync(uploaded)
		}
		return nil, s.writeFailed("update", id, err)
	}

	// The old image is only released once the row no longer points at it.
	if replaced != "" && replaced != uploaded {
		s.deleteAssetAsync(replaced)
	}

	s.views.Revalidate(ViewProducts, ViewStorefront, ViewAdminProducts, ProductView(id), ProductEditView(id))

	s.log.WithFields(logrus.Fields{
		"product_id":    id,
		"image_changed": uploaded != "",
	}).Info("Product updated")
	return &product, nil
}

// Delete removes product id with its tag links, then releases its image.
// Products that appear on orders are kept.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	var product models.Product
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return &PersistenceError{Op: "load product", Err: err}
		}

		var orders int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&orders).Error; err != nil {
			return &PersistenceError{Op: "count order items", Err: err}
		}
		if orders > 0 {
			return ErrProductHasOrders
		}

		if err := tx.Where("product_id = ?", id).Delete(&models.ProductTag{}).Error; err != nil {
			return &PersistenceError{Op: "delete product tags", Err: err}
		}
		if err := tx.Where("id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return &PersistenceError{Op: "delete product", Err: err}
		}
		return nil
	})
	if err != nil {
		return s.writeFailed("delete", id, err)
	}

	if product.ImageSource != "" {
		s.deleteAssetAsync(product.ImageSource)
	}

	s.views.Revalidate(ViewProducts, ViewStorefront, ViewAdminProducts, ProductView(id), ProductEditView(id))

	s.log.WithField("product_id", id).Info("Product deleted")
	return nil
}

// ToggleAvailability sets the availability flag; repeating a call is harmless.
func (s *ProductService) ToggleAvailability(ctx context.Context, id uuid.UUID, available bool) (*models.Product, error) {
	var product models.Product
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return &PersistenceError{Op: "load product", Err: err}
		}

		err := tx.Model(&models.Product{}).Where("id = ?", id).
			Updates(map[string]interface{}{"available_for_purchase": available}).Error
		if err != nil {
			return &PersistenceError{Op: "update availability", Err: err}
		}
		product.AvailableForPurchase = available

		tags, err := loadProductTags(tx, id)
		if err != nil {
			return &PersistenceError{Op: "load tags", Err: err}
		}
		product.Tags = tags
		return nil
	})
	if err != nil {
		return nil, s.writeFailed("toggle availability", id, err)
	}

	s.views.Revalidate(ViewProducts, ViewStorefront, ViewAdminProducts, ProductView(id), ProductEditView(id))

	s.log.WithFields(logrus.Fields{
		"product_id": id,
		"available":  available,
	}).Info("Product availability updated")
	return &product, nil
}

// GetProduct loads a product with its tags sorted by name.
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	tags, err := loadProductTags(db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product tags: %w", err)
	}
	product.Tags = tags
	return &product, nil
}

// Close waits for background image deletions to finish.
func (s *ProductService) Close() {
	s.pending.Wait()
}

func (s *ProductService) parse(sub FormSubmission, image ImageRequirement) (*ProductInput, error) {
	form, err := NormalizeForm(sub)
	if err != nil {
		return nil, err
	}
	return ValidateProductForm(form, image)
}

func (s *ProductService) upload(ctx context.Context, file *FileUpload) (string, error) {
	address, err := s.assets.Upload(ctx, file.Name, file.ContentType, file.Data, true)
	if err != nil {
		s.log.WithError(err).WithField("file", file.Name).Error("Image upload failed")
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	s.log.WithFields(logrus.Fields{
		"address": address,
		"sha256":  utils.HashBytes(file.Data),
	}).Debug("Image uploaded")
	return address, nil
}

// writeFailed logs a failed transaction and normalizes it into the error
// taxonomy: domain sentinels pass through, anything else is a persistence failure.
func (s *ProductService) writeFailed(op string, id uuid.UUID, err error) error {
	if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrProductHasOrders) {
		return err
	}

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		perr = &PersistenceError{Op: "commit", Err: err}
	}

	entry := s.log.WithError(perr.Err).WithField("step", perr.Op)
	if id != uuid.Nil {
		entry = entry.WithField("product_id", id)
	}
	entry.Errorf("Product %s failed", op)
	return perr
}

// deleteAssetAsync removes a blob in the background with a bounded retry.
// Failures are logged and otherwise ignored.
func (s *ProductService) deleteAssetAsync(address string) {
	if address == "" {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), assetDeleteTimeout)
		defer cancel()

		var err error
		for attempt := 1; attempt <= assetDeleteAttempts; attempt++ {
			if err = s.assets.Delete(ctx, address); err == nil {
				return
			}
			s.log.WithError(err).WithFields(logrus.Fields{
				"address": address,
				"attempt": attempt,
			}).Warn("Image delete failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(assetDeleteBackoff * time.Duration(attempt)):
			}
		}
		s.log.WithError(err).WithField("address", address).Error("Giving up on image delete")
	}()
}

// lockForUpdate takes a row lock where the dialect has one. SQLite
// serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func insertProductTags(tx *gorm.DB, productID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]models.ProductTag, len(tagIDs))
	for i, tagID := range tagIDs {
		rows[i] = models.ProductTag{ProductID: productID, TagID: tagID}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return &PersistenceError{Op: "insert product tags", Err: err}
	}
	return nil
}

func loadProductTags(db *gorm.DB, productID uuid.UUID) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := db.Model(&models.Tag{}).
		Joins("JOIN product_tags ON product_tags.tag_id = tags.id").
		Where("product_tags.product_id = ?", productID).
		Order("tags.name ASC").
		Find(&tags).Error
	return tags, err
}

// loadTagsByProduct loads the tags of many products in one query.
func loadTagsByProduct(db *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID][]models.Tag, error) {
	byProduct := make(map[uuid.UUID][]models.Tag, len(productIDs))
	if len(productIDs) == 0 {
		return byProduct, nil
	}

	var rows []struct {
		models.Tag
		ProductID uuid.UUID
	}
	err := db.Table("tags").
		Select("tags.*, product_tags.product_id").
		Joins("JOIN product_tags ON product_tags.tag_id = tags.id").
		Where("product_tags.product_id IN ?", productIDs).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row.Tag)
	}
	return byProduct, nil
}
