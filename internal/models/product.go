// internal/models/product.go
package models

import (
	"github.com/google/uuid"
)

type Product struct {
	BaseModel
	Name                 string `json:"name" gorm:"size:255;not null"`
	Description          string `json:"description" gorm:"type:text;not null"`
	PriceInCents         int    `json:"price_in_cents" gorm:"not null"`
	ImageSource          string `json:"image_source" gorm:"type:text;not null;default:''"`
	AvailableForPurchase bool   `json:"available_for_purchase" gorm:"not null;default:false;index"`

	// Loaded explicitly from product_tags; never written through the association.
	Tags []Tag `json:"tags" gorm:"-"`
}

// TagNames returns the product's tag names in their stored order.
func (p *Product) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// ProductTag is the product/tag join row. The composite key allows one row per pair.
type ProductTag struct {
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;primaryKey"`
	TagID     uuid.UUID `json:"tag_id" gorm:"type:uuid;primaryKey;index"`

	Product *Product `json:"-" gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Tag     *Tag     `json:"tag,omitempty" gorm:"foreignKey:TagID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
