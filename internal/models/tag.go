// internal/models/tag.go
package models

type Tag struct {
	BaseModel
	Name string `json:"name" gorm:"size:100;uniqueIndex;not null"`
}
