package models

import (
	"gekoimport/internal/utils"
	"strings"

	"gorm.io/gorm"
)

// CatalogReference is the shared shape of entities products point at but do not own.
// NaturalKey is the vendor code when the feed supplies one, otherwise the normalized name.
type CatalogReference struct {
	BaseUUIDModel
	NaturalKey string  `gorm:"type:text;not null;uniqueIndex" json:"naturalKey"`
	Code       *string `gorm:"type:text"                      json:"code,omitempty"`
	Name       string  `gorm:"type:text;not null"             json:"name"`
}

func (r *CatalogReference) BeforeSave(tx *gorm.DB) error {
	r.Name, _ = utils.CleanUTF8(r.Name)
	return nil
}

type Category struct {
	CatalogReference
}

type Producer struct {
	CatalogReference
}

type Unit struct {
	CatalogReference
}

// NaturalKeyFor builds the lookup key for a referenced entity.
func NaturalKeyFor(code, name string) string {
	if code = strings.TrimSpace(code); code != "" {
		return "code:" + code
	}
	return "name:" + NormalizeName(name)
}

// NormalizeName lowercases and collapses whitespace so "Power  Tools" and "power tools" match.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
