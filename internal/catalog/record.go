package catalog

import (
	"time"

	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// PriceData is the normalized price block of a product.
type PriceData struct {
	Current  float64 `json:"current"  bson:"current"`
	Original float64 `json:"original" bson:"original"`
	SaleTag  string  `json:"sale_tag" bson:"sale_tag"`
}

// StockInfo reports availability. The catalog exposes no quantities, so
// Count is always zero.
type StockInfo struct {
	InStock bool `json:"in_stock" bson:"in_stock"`
	Count   int  `json:"count"    bson:"count"`
}

// AssetBundle holds the product media.
type AssetBundle struct {
	MainImage string   `json:"main_image" bson:"main_image"`
	SetImages []string `json:"set_images" bson:"set_images"`
	View360   []string `json:"view360"    bson:"view360"`
	Video     []string `json:"video"      bson:"video"`
}

// Metadata carries the description and identifier fields under the keys the
// downstream dataset expects. Country is nil when the page does not name one.
type Metadata struct {
	Description string  `json:"__description"        bson:"__description"`
	Article     string  `json:"АРТИКУЛ"              bson:"АРТИКУЛ"`
	Country     *string `json:"СТРАНА ПРОИЗВОДИТЕЛЬ" bson:"СТРАНА ПРОИЗВОДИТЕЛЬ"`
}

// ProductRecord is the normalized output for one product page. Brand is nil
// when the page has no brand element and serializes as null.
type ProductRecord struct {
	Timestamp     float64     `json:"timestamp"      bson:"timestamp"`
	RPC           string      `json:"RPC"            bson:"RPC"`
	URL           string      `json:"url"            bson:"url"`
	Title         string      `json:"title"          bson:"title"`
	MarketingTags []string    `json:"marketing_tags" bson:"marketing_tags"`
	Brand         *string     `json:"brand"          bson:"brand"`
	Section       []string    `json:"section"        bson:"section"`
	PriceData     PriceData   `json:"price_data"     bson:"price_data"`
	Stock         StockInfo   `json:"stock"          bson:"stock"`
	Assets        AssetBundle `json:"assets"         bson:"assets"`
	Metadata      Metadata    `json:"metadata"       bson:"metadata"`
	Variants      int         `json:"variants"       bson:"variants"`
}

// Item field keys, identical to the record's JSON keys.
const (
	FieldTimestamp     = "timestamp"
	FieldRPC           = "RPC"
	FieldURL           = "url"
	FieldTitle         = "title"
	FieldMarketingTags = "marketing_tags"
	FieldBrand         = "brand"
	FieldSection       = "section"
	FieldPriceData     = "price_data"
	FieldStock         = "stock"
	FieldAssets        = "assets"
	FieldMetadata      = "metadata"
	FieldVariants      = "variants"
)

// unixSeconds renders t the way the dataset stores timestamps: fractional
// seconds with microsecond resolution.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// Item converts the record into a pipeline item.
func (r *ProductRecord) Item() *types.Item {
	item := types.NewItem(r.URL)
	item.Set(FieldTimestamp, r.Timestamp)
	item.Set(FieldRPC, r.RPC)
	item.Set(FieldURL, r.URL)
	item.Set(FieldTitle, r.Title)
	item.Set(FieldMarketingTags, r.MarketingTags)
	item.Set(FieldBrand, r.Brand)
	item.Set(FieldSection, r.Section)
	item.Set(FieldPriceData, r.PriceData)
	item.Set(FieldStock, r.Stock)
	item.Set(FieldAssets, r.Assets)
	item.Set(FieldMetadata, r.Metadata)
	item.Set(FieldVariants, r.Variants)
	return item
}

// RecordFromItem rebuilds a record from an item produced by Item.
// It reports false when the item does not carry a product record. An empty
// RPC is a valid record: a URL ending in "_" has an empty identifier.
func RecordFromItem(item *types.Item) (*ProductRecord, bool) {
	rec := &ProductRecord{
		URL:   item.GetString(FieldURL),
		Title: item.GetString(FieldTitle),
	}

	var ok bool
	if rec.RPC, ok = fieldAs[string](item, FieldRPC); !ok {
		return nil, false
	}
	if rec.Timestamp, ok = fieldAs[float64](item, FieldTimestamp); !ok {
		return nil, false
	}
	if rec.PriceData, ok = fieldAs[PriceData](item, FieldPriceData); !ok {
		return nil, false
	}
	if rec.Stock, ok = fieldAs[StockInfo](item, FieldStock); !ok {
		return nil, false
	}
	if rec.Assets, ok = fieldAs[AssetBundle](item, FieldAssets); !ok {
		return nil, false
	}
	if rec.Metadata, ok = fieldAs[Metadata](item, FieldMetadata); !ok {
		return nil, false
	}
	rec.Brand, _ = fieldAs[*string](item, FieldBrand)
	rec.MarketingTags, _ = fieldAs[[]string](item, FieldMarketingTags)
	rec.Section, _ = fieldAs[[]string](item, FieldSection)
	rec.Variants, _ = fieldAs[int](item, FieldVariants)
	return rec, true
}

func fieldAs[T any](item *types.Item, key string) (T, bool) {
	var zero T
	v, ok := item.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
