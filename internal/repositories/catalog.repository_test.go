package repositories_test

import (
	"context"
	"gekoimport/internal/models"
	"gekoimport/internal/repositories"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(value string) *string {
	return &value
}

func TestCatalogRepository_UpsertReferenceByNaturalKey(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	first := &models.Category{CatalogReference: models.CatalogReference{
		NaturalKey: models.NaturalKeyFor("", "Power Tools"),
		Name:       "Power Tools",
	}}
	created, err := repo.UpsertCategory(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &models.Category{CatalogReference: models.CatalogReference{
		NaturalKey: models.NaturalKeyFor("", "power   tools"),
		Name:       "power   tools",
	}}
	created, err = repo.UpsertCategory(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.SQL.Model(&models.Category{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCatalogRepository_UpsertRestoresSoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	producer := &models.Producer{CatalogReference: models.CatalogReference{
		NaturalKey: models.NaturalKeyFor("P1", "Acme"),
		Code:       stringPtr("P1"),
		Name:       "Acme",
	}}
	_, err := repo.UpsertProducer(ctx, producer)
	require.NoError(t, err)
	require.NoError(t, db.SQL.Delete(&models.Producer{}, "id = ?", producer.ID).Error)

	again := &models.Producer{CatalogReference: models.CatalogReference{
		NaturalKey: models.NaturalKeyFor("P1", "Acme Corp"),
		Code:       stringPtr("P1"),
		Name:       "Acme Corp",
	}}
	created, err := repo.UpsertProducer(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, producer.ID, again.ID)

	var restored models.Producer
	require.NoError(t, db.SQL.First(&restored, "id = ?", producer.ID).Error)
	assert.Equal(t, "Acme Corp", restored.Name)
}

func TestCatalogRepository_ProductUpdateIsLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	product := &models.Product{
		Code:  "GK-1",
		Name:  "Hammer",
		Stock: decimal.NewNullDecimal(decimal.NewFromInt(5)),
	}
	created, err := repo.UpsertProduct(ctx, product)
	require.NoError(t, err)
	assert.True(t, created)

	update := &models.Product{
		Code:  "GK-1",
		Name:  "Hammer XL",
		EAN:   stringPtr("5901234123457"),
		Stock: decimal.NewNullDecimal(decimal.NewFromInt(7)),
	}
	created, err = repo.UpsertProduct(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, product.ID, update.ID)

	stored, err := repo.GetProductByCode(ctx, "GK-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Hammer XL", stored.Name)
	require.NotNil(t, stored.EAN)
	assert.Equal(t, "5901234123457", *stored.EAN)
	assert.True(t, stored.Stock.Valid)
	assert.True(t, stored.Stock.Decimal.Equal(decimal.NewFromInt(7)))
}

func TestCatalogRepository_DuplicateEANIsRejected(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertProduct(ctx, &models.Product{Code: "A", Name: "A", EAN: stringPtr("5901234123457")})
	require.NoError(t, err)

	_, err = repo.UpsertProduct(ctx, &models.Product{Code: "B", Name: "B", EAN: stringPtr("5901234123457")})
	assert.Error(t, err)
}

func TestCatalogRepository_VariantCodeIsScopedToProduct(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	first := &models.Product{Code: "P-1", Name: "First"}
	second := &models.Product{Code: "P-2", Name: "Second"}
	_, err := repo.UpsertProduct(ctx, first)
	require.NoError(t, err)
	_, err = repo.UpsertProduct(ctx, second)
	require.NoError(t, err)

	created, err := repo.UpsertVariant(ctx, &models.Variant{ProductID: first.ID, Code: "A1", Name: stringPtr("Red")})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.UpsertVariant(ctx, &models.Variant{ProductID: second.ID, Code: "A1", Name: stringPtr("Blue")})
	require.NoError(t, err)
	assert.True(t, created, "same code under another product is a different variant")

	created, err = repo.UpsertVariant(ctx, &models.Variant{ProductID: first.ID, Code: "A1", Name: stringPtr("Green")})
	require.NoError(t, err)
	assert.False(t, created)

	var variants []models.Variant
	require.NoError(t, db.SQL.Order("code").Find(&variants, "product_id = ?", first.ID).Error)
	require.Len(t, variants, 1)
	assert.Equal(t, "Green", *variants[0].Name)

	var total int64
	require.NoError(t, db.SQL.Model(&models.Variant{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestCatalogRepository_SinglePrimaryImage(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	product := &models.Product{Code: "IMG", Name: "Pictured"}
	_, err := repo.UpsertProduct(ctx, product)
	require.NoError(t, err)

	_, err = repo.UpsertImage(ctx, &models.Image{ProductID: product.ID, URL: "https://cdn/a.jpg", IsPrimary: true})
	require.NoError(t, err)
	_, err = repo.UpsertImage(ctx, &models.Image{ProductID: product.ID, URL: "https://cdn/b.jpg", IsPrimary: true, SortOrder: 1})
	require.NoError(t, err)

	var primaries []models.Image
	require.NoError(t, db.SQL.Find(&primaries, "product_id = ? AND is_primary = ?", product.ID, true).Error)
	require.Len(t, primaries, 1)
	assert.Equal(t, "https://cdn/b.jpg", primaries[0].URL)
}

func TestCatalogRepository_PriceOwnerScoping(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	product := &models.Product{Code: "PR", Name: "Priced"}
	_, err := repo.UpsertProduct(ctx, product)
	require.NoError(t, err)

	price := &models.Price{
		OwnerType: models.PriceOwnerProduct,
		OwnerID:   product.ID,
		Kind:      models.PriceKindBase,
		Net:       decimal.NewNullDecimal(decimal.RequireFromString("10.00")),
		Gross:     decimal.NewNullDecimal(decimal.RequireFromString("12.30")),
		Currency:  models.DefaultCurrency,
	}
	created, err := repo.UpsertPrice(ctx, price)
	require.NoError(t, err)
	assert.True(t, created)

	repriced := &models.Price{
		OwnerType: models.PriceOwnerProduct,
		OwnerID:   product.ID,
		Kind:      models.PriceKindBase,
		Net:       decimal.NewNullDecimal(decimal.RequireFromString("11.00")),
		Currency:  models.DefaultCurrency,
	}
	created, err = repo.UpsertPrice(ctx, repriced)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetProductByCode(ctx, "PR")
	require.NoError(t, err)
	require.Len(t, stored.Prices, 1)
	assert.True(t, stored.Prices[0].Net.Decimal.Equal(decimal.RequireFromString("11")))
	assert.False(t, stored.Prices[0].Gross.Valid)
}

func TestCatalogRepository_DocumentsAndProperties(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewCatalogRepository(db)
	ctx := context.Background()

	product := &models.Product{Code: "DOC", Name: "Documented"}
	_, err := repo.UpsertProduct(ctx, product)
	require.NoError(t, err)

	for range 2 {
		_, err = repo.UpsertDocument(ctx, &models.Document{ProductID: product.ID, URL: "https://cdn/manual.pdf", Type: stringPtr("manual")})
		require.NoError(t, err)
		_, err = repo.UpsertProperty(ctx, &models.Property{ProductID: product.ID, Name: "Color", Value: "Red"})
		require.NoError(t, err)
	}

	stored, err := repo.GetProductByCode(ctx, "DOC")
	require.NoError(t, err)
	assert.Len(t, stored.Documents, 1)
	assert.Len(t, stored.Properties, 1)

	missing, err := repo.GetProductByCode(ctx, "NOPE")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
