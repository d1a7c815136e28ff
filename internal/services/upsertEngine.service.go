package services

import (
	"context"
	"gekoimport/internal/models"
	"gekoimport/internal/repositories"

	contextutil "gekoimport/internal/context"
	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferenceOutcome struct {
	ID      uuid.UUID
	Created bool
}

// ItemOutcome summarizes what one committed item wrote. References only holds the
// references the item actually upserted; cached ones are not touched.
type ItemOutcome struct {
	ProductID      uuid.UUID
	ProductCreated bool
	References     map[ReferenceKind]ReferenceOutcome
	Variants       int
	Prices         int
	Images         int
	Documents      int
	Properties     int
}

// UpsertEngine writes one resolved item per transaction: references, then the product,
// then its variants and the rest of its children.
type UpsertEngine struct {
	log         logger.Logger
	transaction *TransactionService
	catalog     repositories.CatalogRepository
}

func NewUpsertEngine(
	transaction *TransactionService,
	catalog repositories.CatalogRepository,
) *UpsertEngine {
	return &UpsertEngine{
		log:         logger.New("upsertEngine"),
		transaction: transaction,
		catalog:     catalog,
	}
}

// Persist writes set atomically. On error nothing of the item is kept.
func (e *UpsertEngine) Persist(ctx context.Context, set *ResolvedEntitySet) (*ItemOutcome, error) {
	log := e.log.Function("Persist")

	var outcome *ItemOutcome
	err := e.transaction.Execute(ctx, func(txCtx context.Context, _ *gorm.DB) error {
		result, err := e.persist(txCtx, set)
		if err != nil {
			return err
		}
		outcome = result
		return nil
	})
	if err != nil {
		jobID, _ := contextutil.GetImportJob(ctx)
		return nil, log.Err(
			"failed to persist feed item",
			err,
			"jobID", jobID,
			"position", set.Position,
			"code", set.Product.Code,
		)
	}

	return outcome, nil
}

func (e *UpsertEngine) persist(ctx context.Context, set *ResolvedEntitySet) (*ItemOutcome, error) {
	outcome := &ItemOutcome{References: make(map[ReferenceKind]ReferenceOutcome)}

	referenceIDs := make(map[ReferenceKind]*uuid.UUID, len(referenceKinds))
	for _, kind := range referenceKinds {
		reference, ok := set.References[kind]
		if !ok {
			continue
		}
		if reference.ID != nil {
			id := *reference.ID
			referenceIDs[kind] = &id
			continue
		}

		resolved, err := e.upsertReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		outcome.References[kind] = resolved
		referenceIDs[kind] = &resolved.ID
	}

	product := models.Product{
		Code:        set.Product.Code,
		EAN:         set.Product.EAN,
		Name:        set.Product.Name,
		Description: set.Product.Description,
		VAT:         set.Product.VAT,
		Weight:      set.Product.Weight,
		Stock:       set.Product.Stock,
		CategoryID:  referenceIDs[ReferenceCategory],
		ProducerID:  referenceIDs[ReferenceProducer],
		UnitID:      referenceIDs[ReferenceUnit],
	}
	created, err := e.catalog.UpsertProduct(ctx, &product)
	if err != nil {
		return nil, err
	}
	outcome.ProductID = product.ID
	outcome.ProductCreated = created

	count, err := e.upsertPrices(ctx, models.PriceOwnerProduct, product.ID, set.Prices)
	if err != nil {
		return nil, err
	}
	outcome.Prices += count

	for _, resolved := range set.Variants {
		variant := models.Variant{
			ProductID: product.ID,
			Code:      resolved.Code,
			EAN:       resolved.EAN,
			Name:      resolved.Name,
			Stock:     resolved.Stock,
		}
		if _, err := e.catalog.UpsertVariant(ctx, &variant); err != nil {
			return nil, err
		}
		outcome.Variants++

		count, err := e.upsertPrices(ctx, models.PriceOwnerVariant, variant.ID, resolved.Prices)
		if err != nil {
			return nil, err
		}
		outcome.Prices += count
	}

	for _, resolved := range set.Images {
		image := models.Image{
			ProductID: product.ID,
			URL:       resolved.URL,
			IsPrimary: resolved.IsPrimary,
			SortOrder: resolved.SortOrder,
		}
		if _, err := e.catalog.UpsertImage(ctx, &image); err != nil {
			return nil, err
		}
		outcome.Images++
	}

	for _, resolved := range set.Documents {
		document := models.Document{
			ProductID: product.ID,
			URL:       resolved.URL,
			Type:      resolved.Type,
			Name:      resolved.Name,
		}
		if _, err := e.catalog.UpsertDocument(ctx, &document); err != nil {
			return nil, err
		}
		outcome.Documents++
	}

	for _, resolved := range set.Properties {
		property := models.Property{
			ProductID: product.ID,
			Name:      resolved.Name,
			Value:     resolved.Value,
		}
		if _, err := e.catalog.UpsertProperty(ctx, &property); err != nil {
			return nil, err
		}
		outcome.Properties++
	}

	return outcome, nil
}

func (e *UpsertEngine) upsertReference(
	ctx context.Context,
	reference *ResolvedReference,
) (ReferenceOutcome, error) {
	base := models.CatalogReference{
		NaturalKey: reference.NaturalKey,
		Code:       reference.Code,
		Name:       reference.Name,
	}

	switch reference.Kind {
	case ReferenceCategory:
		category := models.Category{CatalogReference: base}
		created, err := e.catalog.UpsertCategory(ctx, &category)
		return ReferenceOutcome{ID: category.ID, Created: created}, err
	case ReferenceProducer:
		producer := models.Producer{CatalogReference: base}
		created, err := e.catalog.UpsertProducer(ctx, &producer)
		return ReferenceOutcome{ID: producer.ID, Created: created}, err
	default:
		unit := models.Unit{CatalogReference: base}
		created, err := e.catalog.UpsertUnit(ctx, &unit)
		return ReferenceOutcome{ID: unit.ID, Created: created}, err
	}
}

func (e *UpsertEngine) upsertPrices(
	ctx context.Context,
	ownerType string,
	ownerID uuid.UUID,
	prices []ResolvedPrice,
) (int, error) {
	for _, resolved := range prices {
		price := models.Price{
			OwnerID:   ownerID,
			OwnerType: ownerType,
			Kind:      resolved.Kind,
			Net:       resolved.Net,
			Gross:     resolved.Gross,
			Currency:  resolved.Currency,
		}
		if _, err := e.catalog.UpsertPrice(ctx, &price); err != nil {
			return 0, err
		}
	}
	return len(prices), nil
}
