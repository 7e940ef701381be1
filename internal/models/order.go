// internal/models/order.go
package models

import (
	"github.com/google/uuid"
)

// Orders are written by checkout; the back-office only reads them.
type Order struct {
	BaseModel
	UserID           uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	PricePaidInCents int       `json:"price_paid_in_cents" gorm:"not null"`

	// Relationships
	User  User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	Quantity     int       `json:"quantity" gorm:"not null;default:1"`
	PriceInCents int       `json:"price_in_cents" gorm:"not null"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
