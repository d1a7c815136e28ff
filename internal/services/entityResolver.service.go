package services

import (
	"fmt"
	"gekoimport/internal/models"
	"regexp"
	"strings"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReferenceKind string

const (
	ReferenceCategory ReferenceKind = "category"
	ReferenceProducer ReferenceKind = "producer"
	ReferenceUnit     ReferenceKind = "unit"
)

var referenceKinds = []ReferenceKind{ReferenceCategory, ReferenceProducer, ReferenceUnit}

var eanPattern = regexp.MustCompile(`^\d{13}$`)

// ResolvedReference points at a category, producer or unit. ID is set when an earlier item
// of the same job already persisted the entity; otherwise the upsert engine writes it.
type ResolvedReference struct {
	Kind       ReferenceKind
	NaturalKey string
	Code       *string
	Name       string
	ID         *uuid.UUID
}

type ResolvedPrice struct {
	Kind     string
	Net      decimal.NullDecimal
	Gross    decimal.NullDecimal
	Currency string
}

type ResolvedVariant struct {
	Code   string
	EAN    *string
	Name   *string
	Stock  decimal.NullDecimal
	Prices []ResolvedPrice
}

type ResolvedImage struct {
	URL       string
	IsPrimary bool
	SortOrder int
}

type ResolvedDocument struct {
	URL  string
	Type *string
	Name *string
}

type ResolvedProperty struct {
	Name  string
	Value string
}

type ResolvedProduct struct {
	Code        string
	EAN         *string
	Name        string
	Description *string
	VAT         decimal.NullDecimal
	Weight      decimal.NullDecimal
	Stock       decimal.NullDecimal
}

// ResolvedEntitySet is one validated feed item, ready to be written in dependency order.
type ResolvedEntitySet struct {
	Position   int
	Line       int
	References map[ReferenceKind]*ResolvedReference
	Product    ResolvedProduct
	Prices     []ResolvedPrice
	Variants   []ResolvedVariant
	Images     []ResolvedImage
	Documents  []ResolvedDocument
	Properties []ResolvedProperty
}

// EntityResolver validates raw items and resolves their references through a cache that
// lives as long as one import job. The cache only learns ids from committed items.
type EntityResolver struct {
	log   logger.Logger
	cache map[ReferenceKind]map[string]uuid.UUID
}

func NewEntityResolver() *EntityResolver {
	cache := make(map[ReferenceKind]map[string]uuid.UUID, len(referenceKinds))
	for _, kind := range referenceKinds {
		cache[kind] = make(map[string]uuid.UUID)
	}

	return &EntityResolver{
		log:   logger.New("entityResolver"),
		cache: cache,
	}
}

// Resolve turns a raw item into an entity set. Any validation failure is returned as an
// *ItemError and nothing of the item is written.
func (r *EntityResolver) Resolve(item RawItem) (*ResolvedEntitySet, error) {
	if item.Err != nil {
		return nil, item.Err
	}
	if item.Product == nil {
		return nil, &ItemError{Position: item.Position, Line: item.Line, Reason: "empty product"}
	}

	raw := item.Product
	fail := func(format string, args ...any) (*ResolvedEntitySet, error) {
		return nil, &ItemError{
			Position: item.Position,
			Line:     item.Line,
			Key:      raw.Code,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	if raw.Code == "" {
		return fail("product has no code")
	}
	if raw.Name == "" {
		return fail("product name is empty")
	}

	ean, err := parseEAN(raw.EAN)
	if err != nil {
		return fail("%v", err)
	}

	set := &ResolvedEntitySet{
		Position:   item.Position,
		Line:       item.Line,
		References: make(map[ReferenceKind]*ResolvedReference, len(referenceKinds)),
		Product: ResolvedProduct{
			Code:        raw.Code,
			EAN:         ean,
			Name:        raw.Name,
			Description: optional(raw.Description),
		},
	}

	if set.Product.VAT, err = parseDecimal("vat", strings.TrimSuffix(raw.VAT, "%")); err != nil {
		return fail("%v", err)
	}
	if set.Product.Weight, err = parseDecimal("weight", raw.Weight); err != nil {
		return fail("%v", err)
	}
	if set.Product.Stock, err = parseDecimal("stock", raw.Stock); err != nil {
		return fail("%v", err)
	}

	for kind, reference := range map[ReferenceKind]*RawReference{
		ReferenceCategory: raw.Category,
		ReferenceProducer: raw.Producer,
		ReferenceUnit:     raw.Unit,
	} {
		if resolved := r.resolveReference(kind, reference); resolved != nil {
			set.References[kind] = resolved
		}
	}

	if set.Prices, err = resolvePrices(raw.Prices); err != nil {
		return fail("%v", err)
	}

	if set.Variants, err = resolveVariants(raw.Variants); err != nil {
		return fail("%v", err)
	}

	if set.Images, err = resolveImages(raw.Images); err != nil {
		return fail("%v", err)
	}

	for i, document := range raw.Documents {
		if document.URL == "" {
			return fail("document %d has no url", i+1)
		}
		set.Documents = appendDocument(set.Documents, ResolvedDocument{
			URL:  document.URL,
			Type: optional(document.Type),
			Name: optional(document.Name),
		})
	}

	for i, property := range raw.Properties {
		if property.Name == "" {
			return fail("property %d has no name", i+1)
		}
		set.Properties = appendProperty(set.Properties, ResolvedProperty{
			Name:  property.Name,
			Value: property.Value,
		})
	}

	return set, nil
}

func (r *EntityResolver) resolveReference(kind ReferenceKind, raw *RawReference) *ResolvedReference {
	if raw == nil || (raw.Code == "" && raw.Name == "") {
		return nil
	}

	name := raw.Name
	if name == "" {
		name = raw.Code
	}

	reference := &ResolvedReference{
		Kind:       kind,
		NaturalKey: models.NaturalKeyFor(raw.Code, raw.Name),
		Code:       optional(raw.Code),
		Name:       name,
	}
	if id, ok := r.cache[kind][reference.NaturalKey]; ok {
		reference.ID = &id
	}

	return reference
}

// Remember records the ids an item's committed transaction produced. It returns the
// reference kinds this job had not resolved before, which is what the per-job
// category/producer/unit counters count.
func (r *EntityResolver) Remember(set *ResolvedEntitySet, outcome *ItemOutcome) []ReferenceKind {
	var firstSeen []ReferenceKind

	for _, kind := range referenceKinds {
		reference, ok := set.References[kind]
		if !ok || reference.ID != nil {
			continue
		}
		resolved, ok := outcome.References[kind]
		if !ok {
			continue
		}
		if _, known := r.cache[kind][reference.NaturalKey]; known {
			continue
		}

		r.cache[kind][reference.NaturalKey] = resolved.ID
		firstSeen = append(firstSeen, kind)
		r.log.Function("Remember").
			Debug("Reference cached", "kind", kind, "naturalKey", reference.NaturalKey, "id", resolved.ID)
	}

	return firstSeen
}

// Known reports how many distinct references of kind the job has resolved.
func (r *EntityResolver) Known(kind ReferenceKind) int {
	return len(r.cache[kind])
}

func resolvePrices(raw []RawPrice) ([]ResolvedPrice, error) {
	var prices []ResolvedPrice

	for _, price := range raw {
		kind := strings.ToLower(price.Kind)
		if kind == "" {
			kind = models.PriceKindBase
		}

		net, err := parseDecimal(kind+" net price", price.Net)
		if err != nil {
			return nil, err
		}
		gross, err := parseDecimal(kind+" gross price", price.Gross)
		if err != nil {
			return nil, err
		}

		currency := strings.ToUpper(price.Currency)
		if currency == "" {
			currency = models.DefaultCurrency
		}
		if len(currency) != 3 {
			return nil, fmt.Errorf("invalid currency %q", price.Currency)
		}

		resolved := ResolvedPrice{Kind: kind, Net: net, Gross: gross, Currency: currency}
		replaced := false
		for i := range prices {
			if prices[i].Kind == kind {
				prices[i] = resolved
				replaced = true
			}
		}
		if !replaced {
			prices = append(prices, resolved)
		}
	}

	return prices, nil
}

// resolveVariants collapses variants sharing a code; the last one in the item wins but
// keeps the position of the first.
func resolveVariants(raw []RawVariant) ([]ResolvedVariant, error) {
	var variants []ResolvedVariant
	index := make(map[string]int, len(raw))

	for i, variant := range raw {
		if variant.Code == "" {
			return nil, fmt.Errorf("variant %d has no code", i+1)
		}

		ean, err := parseEAN(variant.EAN)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Code, err)
		}
		stock, err := parseDecimal("stock", variant.Stock)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Code, err)
		}
		prices, err := resolvePrices(variant.Prices)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Code, err)
		}

		resolved := ResolvedVariant{
			Code:   variant.Code,
			EAN:    ean,
			Name:   optional(variant.Name),
			Stock:  stock,
			Prices: prices,
		}

		if existing, ok := index[variant.Code]; ok {
			variants[existing] = resolved
			continue
		}
		index[variant.Code] = len(variants)
		variants = append(variants, resolved)
	}

	return variants, nil
}

// resolveImages keeps one primary image: the first marked role="primary", else the first.
func resolveImages(raw []RawImage) ([]ResolvedImage, error) {
	var images []ResolvedImage
	index := make(map[string]int, len(raw))
	primary := -1

	for i, image := range raw {
		if image.URL == "" {
			return nil, fmt.Errorf("image %d has no url", i+1)
		}
		if _, ok := index[image.URL]; ok {
			if primary < 0 && strings.EqualFold(image.Role, "primary") {
				primary = index[image.URL]
			}
			continue
		}

		index[image.URL] = len(images)
		if primary < 0 && strings.EqualFold(image.Role, "primary") {
			primary = len(images)
		}
		images = append(images, ResolvedImage{URL: image.URL, SortOrder: len(images)})
	}

	if len(images) == 0 {
		return nil, nil
	}
	if primary < 0 {
		primary = 0
	}
	images[primary].IsPrimary = true

	return images, nil
}

func appendDocument(documents []ResolvedDocument, document ResolvedDocument) []ResolvedDocument {
	for i := range documents {
		if documents[i].URL == document.URL {
			documents[i] = document
			return documents
		}
	}
	return append(documents, document)
}

func appendProperty(properties []ResolvedProperty, property ResolvedProperty) []ResolvedProperty {
	for i := range properties {
		if properties[i].Name == property.Name {
			properties[i] = property
			return properties
		}
	}
	return append(properties, property)
}

func parseEAN(value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	if !eanPattern.MatchString(value) {
		return nil, fmt.Errorf("invalid EAN %q: must be 13 digits", value)
	}
	return &value, nil
}

// parseDecimal accepts both "1.25" and "1,25"; an empty value is NULL.
func parseDecimal(field, value string) (decimal.NullDecimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if value == "" {
		return decimal.NullDecimal{}, nil
	}

	parsed, err := decimal.NewFromString(strings.Replace(value, ",", ".", 1))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s %q", field, value)
	}

	return decimal.NewNullDecimal(parsed), nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
