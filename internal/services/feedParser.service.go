package services

import (
	"encoding/xml"
	"errors"
	"fmt"
	"gekoimport/internal/utils"
	"io"
	"strings"

	logger "github.com/Bparsons0904/goLogger"
	"golang.org/x/net/html/charset"
)

const productElement = "product"

// ErrFatalParse marks a feed that is not well-formed XML. Nothing after the failure point
// can be trusted, so the whole import stops.
var ErrFatalParse = errors.New("feed is not well-formed")

// ItemError describes one feed item that could not be imported. Position is the 1-based
// ordinal of the <product> element in the feed, Line its line in the source file.
type ItemError struct {
	Position int
	Line     int
	Key      string
	Reason   string
}

func (e *ItemError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("item %d (line %d): %s", e.Position, e.Line, e.Reason)
	}
	return fmt.Sprintf("item %d (line %d, %s): %s", e.Position, e.Line, e.Key, e.Reason)
}

type RawReference struct {
	Code string
	Name string
}

type RawPrice struct {
	Kind     string
	Net      string
	Gross    string
	Currency string
}

type RawVariant struct {
	Code   string
	EAN    string
	Name   string
	Stock  string
	Prices []RawPrice
}

type RawImage struct {
	URL  string
	Role string
}

type RawDocument struct {
	URL  string
	Type string
	Name string
}

type RawProperty struct {
	Name  string
	Value string
}

// RawProduct is one <product> element with every value still a trimmed string.
type RawProduct struct {
	Code        string
	EAN         string
	VAT         string
	Name        string
	Description string
	Category    *RawReference
	Producer    *RawReference
	Unit        *RawReference
	Weight      string
	Stock       string
	Prices      []RawPrice
	Variants    []RawVariant
	Images      []RawImage
	Documents   []RawDocument
	Properties  []RawProperty
}

// RawItem is what the reader yields per <product>: either a decoded product or, when the
// element lacks something every product needs, an item error.
type RawItem struct {
	Position int
	Line     int
	Product  *RawProduct
	Err      *ItemError
}

// FeedReader walks a feed one <product> at a time without loading the document.
// Use it like bufio.Scanner:
//
//	reader := NewFeedReader(file)
//	for reader.Next() {
//		item := reader.Item()
//	}
//	if err := reader.Err(); err != nil { ... }
type FeedReader struct {
	decoder *xml.Decoder
	log     logger.Logger
	item    RawItem
	err     error
	count   int
	sawRoot bool
	done    bool
}

func NewFeedReader(r io.Reader) *FeedReader {
	return &FeedReader{
		decoder: newFeedDecoder(r),
		log:     logger.New("feedParser"),
	}
}

func newFeedDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder
}

// Next advances to the next <product>. It returns false at the end of the feed or on a
// fatal error, after which Err reports which.
func (r *FeedReader) Next() bool {
	if r.done {
		return false
	}

	for {
		token, err := r.decoder.Token()
		if err == io.EOF {
			r.done = true
			if !r.sawRoot {
				r.fail(errors.New("document has no root element"))
			}
			return false
		}
		if err != nil {
			r.fail(err)
			return false
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		r.sawRoot = true
		if start.Name.Local != productElement {
			continue
		}

		line, _ := r.decoder.InputPos()
		var element xmlProduct
		if err := r.decoder.DecodeElement(&element, &start); err != nil {
			r.fail(err)
			return false
		}

		r.count++
		r.item = element.toItem(r.count, line)
		if r.item.Err != nil {
			r.log.Function("Next").
				Debug("Malformed feed item", "position", r.count, "line", line, "reason", r.item.Err.Reason)
		}
		return true
	}
}

func (r *FeedReader) Item() RawItem {
	return r.item
}

// Err returns the fatal error that stopped the reader, wrapping ErrFatalParse, or nil when
// the feed was read to the end.
func (r *FeedReader) Err() error {
	return r.err
}

// Count is the number of items yielded so far, malformed ones included.
func (r *FeedReader) Count() int {
	return r.count
}

func (r *FeedReader) fail(err error) {
	r.done = true
	line, _ := r.decoder.InputPos()
	r.err = fmt.Errorf("%w: line %d: %w", ErrFatalParse, line, err)
	r.log.Function("Next").Er("Feed parsing stopped", r.err, "itemsRead", r.count)
}

// CountItems scans the feed at token level and returns how many <product> elements it
// holds. It fails with ErrFatalParse on the same documents FeedReader would, returning the
// number of <product> elements opened before the failure.
func CountItems(r io.Reader) (int, error) {
	decoder := newFeedDecoder(r)
	count := 0
	sawRoot := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			if !sawRoot {
				return 0, fmt.Errorf("%w: document has no root element", ErrFatalParse)
			}
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("%w: %w", ErrFatalParse, err)
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != productElement {
			continue
		}

		count++
		if err := decoder.Skip(); err != nil {
			return count, fmt.Errorf("%w: %w", ErrFatalParse, err)
		}
	}
}

type xmlReference struct {
	Code     string `xml:"code,attr"`
	CodeElem string `xml:"code"`
	NameAttr string `xml:"name,attr"`
	NameElem string `xml:"name"`
	Text     string `xml:",chardata"`
}

func (x *xmlReference) toRaw() *RawReference {
	if x == nil {
		return nil
	}
	reference := &RawReference{
		Code: firstNonEmpty(x.Code, x.CodeElem),
		Name: utils.CleanText(firstNonEmpty(x.NameAttr, x.NameElem, x.Text)),
	}
	if reference.Code == "" && reference.Name == "" {
		return nil
	}
	return reference
}

type xmlPrice struct {
	Kind     string `xml:"type,attr"`
	Net      string `xml:"net,attr"`
	Gross    string `xml:"gross,attr"`
	Currency string `xml:"currency,attr"`
}

func (x xmlPrice) toRaw() RawPrice {
	return RawPrice{
		Kind:     strings.TrimSpace(x.Kind),
		Net:      strings.TrimSpace(x.Net),
		Gross:    strings.TrimSpace(x.Gross),
		Currency: strings.TrimSpace(x.Currency),
	}
}

type xmlVariant struct {
	Code     string     `xml:"code,attr"`
	CodeElem string     `xml:"code"`
	EAN      string     `xml:"ean,attr"`
	EANElem  string     `xml:"ean"`
	Name     string     `xml:"name"`
	Stock    string     `xml:"stock"`
	Prices   []xmlPrice `xml:"price"`
}

type xmlImage struct {
	URL  string `xml:"url,attr"`
	Role string `xml:"role,attr"`
	Text string `xml:",chardata"`
}

type xmlDocument struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlProduct struct {
	Code        string        `xml:"code,attr"`
	CodeElem    string        `xml:"code"`
	EAN         string        `xml:"ean,attr"`
	EANElem     string        `xml:"ean"`
	VAT         string        `xml:"vat,attr"`
	VATElem     string        `xml:"vat"`
	Name        *string       `xml:"name"`
	Description string        `xml:"description"`
	Category    *xmlReference `xml:"category"`
	Producer    *xmlReference `xml:"producer"`
	Unit        *xmlReference `xml:"unit"`
	Weight      string        `xml:"weight"`
	Stock       string        `xml:"stock"`
	Prices      []xmlPrice    `xml:"price"`
	Variants    []xmlVariant  `xml:"variants>variant"`
	Images      []xmlImage    `xml:"images>image"`
	Documents   []xmlDocument `xml:"documents>document"`
	Properties  []xmlProperty `xml:"properties>property"`
}

func (x xmlProduct) toItem(position, line int) RawItem {
	item := RawItem{Position: position, Line: line}

	code := firstNonEmpty(x.Code, x.CodeElem)
	if code == "" {
		item.Err = &ItemError{Position: position, Line: line, Reason: "product has no code"}
		return item
	}
	if x.Name == nil {
		item.Err = &ItemError{Position: position, Line: line, Key: code, Reason: "product has no name element"}
		return item
	}

	product := &RawProduct{
		Code:        code,
		EAN:         firstNonEmpty(x.EAN, x.EANElem),
		VAT:         firstNonEmpty(x.VAT, x.VATElem),
		Name:        utils.CleanText(*x.Name),
		Description: utils.CleanMultiline(x.Description),
		Category:    x.Category.toRaw(),
		Producer:    x.Producer.toRaw(),
		Unit:        x.Unit.toRaw(),
		Weight:      strings.TrimSpace(x.Weight),
		Stock:       strings.TrimSpace(x.Stock),
	}

	for _, price := range x.Prices {
		product.Prices = append(product.Prices, price.toRaw())
	}

	for _, variant := range x.Variants {
		raw := RawVariant{
			Code:  firstNonEmpty(variant.Code, variant.CodeElem),
			EAN:   firstNonEmpty(variant.EAN, variant.EANElem),
			Name:  utils.CleanText(variant.Name),
			Stock: strings.TrimSpace(variant.Stock),
		}
		for _, price := range variant.Prices {
			raw.Prices = append(raw.Prices, price.toRaw())
		}
		product.Variants = append(product.Variants, raw)
	}

	for _, image := range x.Images {
		product.Images = append(product.Images, RawImage{
			URL:  firstNonEmpty(image.URL, image.Text),
			Role: strings.TrimSpace(image.Role),
		})
	}

	for _, document := range x.Documents {
		product.Documents = append(product.Documents, RawDocument{
			URL:  firstNonEmpty(document.URL, document.Text),
			Type: strings.TrimSpace(document.Type),
			Name: utils.CleanText(document.Name),
		})
	}

	for _, property := range x.Properties {
		product.Properties = append(product.Properties, RawProperty{
			Name:  utils.CleanText(property.Name),
			Value: utils.CleanMultiline(property.Value),
		})
	}

	item.Product = product
	return item
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
