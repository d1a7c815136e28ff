package models

import (
	"github.com/google/uuid"
)

type Image struct {
	BaseUUIDModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_images_product_url,priority:1" json:"productId"`
	URL       string    `gorm:"type:text;not null;uniqueIndex:idx_images_product_url,priority:2" json:"url"`
	IsPrimary bool      `gorm:"not null;default:false"                                          json:"isPrimary"`
	SortOrder int       `gorm:"type:int;default:0"                                              json:"sortOrder"`
}

type Document struct {
	BaseUUIDModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_documents_product_url,priority:1" json:"productId"`
	URL       string    `gorm:"type:text;not null;uniqueIndex:idx_documents_product_url,priority:2" json:"url"`
	Type      *string   `gorm:"type:varchar(50)"                                                    json:"type,omitempty"`
	Name      *string   `gorm:"type:text"                                                           json:"name,omitempty"`
}

type Property struct {
	BaseUUIDModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_properties_product_name,priority:1" json:"productId"`
	Name      string    `gorm:"type:text;not null;uniqueIndex:idx_properties_product_name,priority:2" json:"name"`
	Value     string    `gorm:"type:text"                                                             json:"value"`
}
