package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseUUIDModel
	Code        string              `gorm:"type:text;not null;uniqueIndex"  json:"code"`
	EAN         *string             `gorm:"type:varchar(13);uniqueIndex"    json:"ean,omitempty"`
	Name        string              `gorm:"type:text;not null;index"        json:"name"`
	Description *string             `gorm:"type:text"                       json:"description,omitempty"`
	VAT         decimal.NullDecimal `gorm:"type:numeric(5,2)"               json:"vat"`
	Weight      decimal.NullDecimal `gorm:"type:numeric(12,3)"              json:"weight"`
	Stock       decimal.NullDecimal `gorm:"type:numeric(12,3)"              json:"stock"`
	CategoryID  *uuid.UUID          `gorm:"type:uuid;index"                 json:"categoryId,omitempty"`
	Category    *Category           `gorm:"foreignKey:CategoryID"           json:"category,omitempty"`
	ProducerID  *uuid.UUID          `gorm:"type:uuid;index"                 json:"producerId,omitempty"`
	Producer    *Producer           `gorm:"foreignKey:ProducerID"           json:"producer,omitempty"`
	UnitID      *uuid.UUID          `gorm:"type:uuid;index"                 json:"unitId,omitempty"`
	Unit        *Unit               `gorm:"foreignKey:UnitID"               json:"unit,omitempty"`
	Variants    []Variant           `gorm:"foreignKey:ProductID"            json:"variants,omitempty"`
	Prices      []Price             `gorm:"polymorphic:Owner;polymorphicValue:product" json:"prices,omitempty"`
	Images      []Image             `gorm:"foreignKey:ProductID"            json:"images,omitempty"`
	Documents   []Document          `gorm:"foreignKey:ProductID"            json:"documents,omitempty"`
	Properties  []Property          `gorm:"foreignKey:ProductID"            json:"properties,omitempty"`
}

type Variant struct {
	BaseUUIDModel
	ProductID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_variants_product_code,priority:1" json:"productId"`
	Code      string              `gorm:"type:text;not null;uniqueIndex:idx_variants_product_code,priority:2" json:"code"`
	EAN       *string             `gorm:"type:varchar(13);index"                                              json:"ean,omitempty"`
	Name      *string             `gorm:"type:text"                                                           json:"name,omitempty"`
	Stock     decimal.NullDecimal `gorm:"type:numeric(12,3)"                                                  json:"stock"`
	Prices    []Price             `gorm:"polymorphic:Owner;polymorphicValue:variant"                          json:"prices,omitempty"`
}
