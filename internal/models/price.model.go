package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PriceOwnerProduct = "product"
	PriceOwnerVariant = "variant"

	PriceKindBase   = "base"
	DefaultCurrency = "PLN"
)

// Price belongs to either a product or a variant; (owner, kind) is its natural key.
type Price struct {
	BaseUUIDModel
	OwnerID   uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_prices_owner_kind,priority:2"        json:"ownerId"`
	OwnerType string              `gorm:"type:varchar(20);not null;uniqueIndex:idx_prices_owner_kind,priority:1" json:"ownerType"`
	Kind      string              `gorm:"type:varchar(50);not null;uniqueIndex:idx_prices_owner_kind,priority:3" json:"kind"`
	Net       decimal.NullDecimal `gorm:"type:numeric(12,2)"                                                     json:"net"`
	Gross     decimal.NullDecimal `gorm:"type:numeric(12,2)"                                                     json:"gross"`
	Currency  string              `gorm:"type:varchar(3);not null;default:'PLN'"                                 json:"currency"`
}
