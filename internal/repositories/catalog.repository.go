package repositories

import (
	"context"
	"errors"
	"gekoimport/internal/database"
	. "gekoimport/internal/models"

	contextutil "gekoimport/internal/context"
	logger "github.com/Bparsons0904/goLogger"

	"gorm.io/gorm"
)

// CatalogRepository upserts catalog rows by natural key. Each method reports whether the
// row was created (true) or an existing row was updated (false). Callers run these inside
// one transaction per feed item, see getDB.
type CatalogRepository interface {
	UpsertCategory(ctx context.Context, category *Category) (bool, error)
	UpsertProducer(ctx context.Context, producer *Producer) (bool, error)
	UpsertUnit(ctx context.Context, unit *Unit) (bool, error)
	UpsertProduct(ctx context.Context, product *Product) (bool, error)
	UpsertVariant(ctx context.Context, variant *Variant) (bool, error)
	UpsertPrice(ctx context.Context, price *Price) (bool, error)
	UpsertImage(ctx context.Context, image *Image) (bool, error)
	UpsertDocument(ctx context.Context, document *Document) (bool, error)
	UpsertProperty(ctx context.Context, property *Property) (bool, error)
	GetProductByCode(ctx context.Context, code string) (*Product, error)
}

type catalogRepository struct {
	db  database.DB
	log logger.Logger
}

func NewCatalogRepository(db database.DB) CatalogRepository {
	return &catalogRepository{
		db:  db,
		log: logger.New("catalogRepository"),
	}
}

func (r *catalogRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func referenceUpdates(reference CatalogReference) map[string]any {
	return map[string]any{
		"name": reference.Name,
		"code": reference.Code,
	}
}

func referenceKey(reference CatalogReference) map[string]any {
	return map[string]any{"natural_key": reference.NaturalKey}
}

func (r *catalogRepository) UpsertCategory(ctx context.Context, category *Category) (bool, error) {
	log := r.log.Function("UpsertCategory")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		category,
		[]string{"natural_key"},
		referenceKey(category.CatalogReference),
		referenceUpdates(category.CatalogReference),
	)
	if err != nil {
		return false, log.Err("failed to upsert category", err, "naturalKey", category.NaturalKey)
	}

	return created, nil
}

func (r *catalogRepository) UpsertProducer(ctx context.Context, producer *Producer) (bool, error) {
	log := r.log.Function("UpsertProducer")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		producer,
		[]string{"natural_key"},
		referenceKey(producer.CatalogReference),
		referenceUpdates(producer.CatalogReference),
	)
	if err != nil {
		return false, log.Err("failed to upsert producer", err, "naturalKey", producer.NaturalKey)
	}

	return created, nil
}

func (r *catalogRepository) UpsertUnit(ctx context.Context, unit *Unit) (bool, error) {
	log := r.log.Function("UpsertUnit")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		unit,
		[]string{"natural_key"},
		referenceKey(unit.CatalogReference),
		referenceUpdates(unit.CatalogReference),
	)
	if err != nil {
		return false, log.Err("failed to upsert unit", err, "naturalKey", unit.NaturalKey)
	}

	return created, nil
}

func (r *catalogRepository) UpsertProduct(ctx context.Context, product *Product) (bool, error) {
	log := r.log.Function("UpsertProduct")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		product,
		[]string{"code"},
		map[string]any{"code": product.Code},
		map[string]any{
			"ean":         product.EAN,
			"name":        product.Name,
			"description": product.Description,
			"vat":         product.VAT,
			"weight":      product.Weight,
			"stock":       product.Stock,
			"category_id": product.CategoryID,
			"producer_id": product.ProducerID,
			"unit_id":     product.UnitID,
		},
	)
	if err != nil {
		return false, log.Err("failed to upsert product", err, "code", product.Code)
	}

	return created, nil
}

func (r *catalogRepository) UpsertVariant(ctx context.Context, variant *Variant) (bool, error) {
	log := r.log.Function("UpsertVariant")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		variant,
		[]string{"product_id", "code"},
		map[string]any{"product_id": variant.ProductID, "code": variant.Code},
		map[string]any{
			"ean":   variant.EAN,
			"name":  variant.Name,
			"stock": variant.Stock,
		},
	)
	if err != nil {
		return false, log.Err(
			"failed to upsert variant",
			err,
			"productID", variant.ProductID,
			"code", variant.Code,
		)
	}

	return created, nil
}

func (r *catalogRepository) UpsertPrice(ctx context.Context, price *Price) (bool, error) {
	log := r.log.Function("UpsertPrice")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		price,
		[]string{"owner_type", "owner_id", "kind"},
		map[string]any{"owner_type": price.OwnerType, "owner_id": price.OwnerID, "kind": price.Kind},
		map[string]any{
			"net":      price.Net,
			"gross":    price.Gross,
			"currency": price.Currency,
		},
	)
	if err != nil {
		return false, log.Err(
			"failed to upsert price",
			err,
			"ownerType", price.OwnerType,
			"ownerID", price.OwnerID,
			"kind", price.Kind,
		)
	}

	return created, nil
}

// UpsertImage keeps at most one primary image per product by demoting the others first.
func (r *catalogRepository) UpsertImage(ctx context.Context, image *Image) (bool, error) {
	log := r.log.Function("UpsertImage")

	db := r.getDB(ctx)

	if image.IsPrimary {
		if err := db.Model(&Image{}).
			Where("product_id = ? AND url <> ? AND is_primary = ?", image.ProductID, image.URL, true).
			Update("is_primary", false).Error; err != nil {
			return false, log.Err("failed to demote primary images", err, "productID", image.ProductID)
		}
	}

	created, err := upsertByNaturalKey(
		db,
		image,
		[]string{"product_id", "url"},
		map[string]any{"product_id": image.ProductID, "url": image.URL},
		map[string]any{
			"is_primary": image.IsPrimary,
			"sort_order": image.SortOrder,
		},
	)
	if err != nil {
		return false, log.Err("failed to upsert image", err, "productID", image.ProductID, "url", image.URL)
	}

	return created, nil
}

func (r *catalogRepository) UpsertDocument(ctx context.Context, document *Document) (bool, error) {
	log := r.log.Function("UpsertDocument")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		document,
		[]string{"product_id", "url"},
		map[string]any{"product_id": document.ProductID, "url": document.URL},
		map[string]any{
			"type": document.Type,
			"name": document.Name,
		},
	)
	if err != nil {
		return false, log.Err(
			"failed to upsert document",
			err,
			"productID", document.ProductID,
			"url", document.URL,
		)
	}

	return created, nil
}

func (r *catalogRepository) UpsertProperty(ctx context.Context, property *Property) (bool, error) {
	log := r.log.Function("UpsertProperty")

	created, err := upsertByNaturalKey(
		r.getDB(ctx),
		property,
		[]string{"product_id", "name"},
		map[string]any{"product_id": property.ProductID, "name": property.Name},
		map[string]any{"value": property.Value},
	)
	if err != nil {
		return false, log.Err(
			"failed to upsert property",
			err,
			"productID", property.ProductID,
			"name", property.Name,
		)
	}

	return created, nil
}

func (r *catalogRepository) GetProductByCode(ctx context.Context, code string) (*Product, error) {
	log := r.log.Function("GetProductByCode")

	var product Product
	err := r.getDB(ctx).
		Preload("Category").
		Preload("Producer").
		Preload("Unit").
		Preload("Variants").
		Preload("Variants.Prices").
		Preload("Prices").
		Preload("Images").
		Preload("Documents").
		Preload("Properties").
		First(&product, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get product by code", err, "code", code)
	}

	return &product, nil
}
