// Package normalizer turns heterogeneous source payloads into the canonical
// Property/Estimate shape. It is a pure function of its input.
package normalizer

import (
	"encoding/json"
	"errors"

	"github.com/paulmach/orb"

	"homeworth/server/internal/models"
	"homeworth/server/internal/source"
)

// DefaultCurrency is applied when a payload carries a value but no currency.
const DefaultCurrency = "USD"

// ErrEmptyPayload is returned when the payload itself is structurally absent.
var ErrEmptyPayload = errors.New("payload is empty")

var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// Result is the normalized form of one payload.
type Result struct {
	Property models.Property
	Estimate models.Estimate
	// Price is the observed price: the listing price for pages, the estimate value for
	// valuation payloads.
	Price *float64
	Facts map[string]string
}

type field int

const (
	fieldAddress field = iota
	fieldStreet
	fieldCity
	fieldState
	fieldZip
	fieldURL
	fieldBedrooms
	fieldBathrooms
	fieldSquareFootage
	fieldLotSize
	fieldYearBuilt
	fieldPropertyType
	fieldDescription
	fieldLatitude
	fieldLongitude
	fieldValue
	fieldPrice
	fieldCurrency
	fieldLastSaleDate
	fieldSaleHistory
	fieldContext
)

var valuationAliases = map[field][]string{
	fieldAddress:       {"address", "formatted_address", "formattedAddress"},
	fieldStreet:        {"street", "address_line1", "addressLine1"},
	fieldCity:          {"city"},
	fieldState:         {"state", "state_code", "stateCode"},
	fieldZip:           {"zip", "zip_code", "zipCode", "postal_code"},
	fieldURL:           {"url", "source_url"},
	fieldBedrooms:      {"bedrooms", "beds"},
	fieldBathrooms:     {"bathrooms", "baths"},
	fieldSquareFootage: {"square_footage", "squareFootage", "sqft", "living_area"},
	fieldLotSize:       {"lot_size", "lotSize"},
	fieldYearBuilt:     {"year_built", "yearBuilt"},
	fieldPropertyType:  {"property_type", "propertyType"},
	fieldDescription:   {"description"},
	fieldLatitude:      {"latitude", "lat"},
	fieldLongitude:     {"longitude", "lng", "lon"},
	fieldValue:         {"estimated_value", "estimatedValue", "value", "price"},
	fieldCurrency:      {"currency"},
	fieldLastSaleDate:  {"last_sale_date", "lastSaleDate"},
	fieldSaleHistory:   {"sale_history", "saleHistory", "history", "sale_history_json"},
	fieldContext:       {"context"},
}

// Scraped pages carry the street line under "address" and the listing price under "price".
var pageAliases = map[field][]string{
	fieldStreet:        {"address", "street"},
	fieldCity:          {"city"},
	fieldState:         {"state", "state_code"},
	fieldZip:           {"zip", "postal_code"},
	fieldURL:           {"url"},
	fieldBedrooms:      {"beds", "bedrooms"},
	fieldBathrooms:     {"baths", "bathrooms"},
	fieldSquareFootage: {"sqft", "square_footage"},
	fieldLotSize:       {"lot_size"},
	fieldYearBuilt:     {"year_built"},
	fieldPropertyType:  {"property_type"},
	fieldDescription:   {"description"},
	fieldLatitude:      {"latitude"},
	fieldLongitude:     {"longitude"},
	fieldPrice:         {"price"},
	fieldContext:       {"context"},
}

type reader struct {
	payload source.Payload
	aliases map[field][]string
}

func (r reader) get(f field) any {
	for _, name := range r.aliases[f] {
		if v, ok := r.payload[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Normalize maps a payload of the given kind into a Result. Individual fields that are
// missing or malformed become nil; only a nil or empty payload is an error.
func Normalize(payload source.Payload, kind source.Kind) (*Result, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	r := reader{payload: payload, aliases: valuationAliases}
	if kind == source.KindPage {
		r.aliases = pageAliases
	}

	res := &Result{
		Property: models.Property{
			Street:        String(r.get(fieldStreet)),
			City:          String(r.get(fieldCity)),
			State:         String(r.get(fieldState)),
			Zip:           String(r.get(fieldZip)),
			SourceURL:     String(r.get(fieldURL)),
			Bedrooms:      Int(r.get(fieldBedrooms)),
			Bathrooms:     Float(r.get(fieldBathrooms)),
			SquareFootage: Int(r.get(fieldSquareFootage)),
			LotSize:       Int(r.get(fieldLotSize)),
			YearBuilt:     Int(r.get(fieldYearBuilt)),
			PropertyType:  String(r.get(fieldPropertyType)),
			Description:   String(r.get(fieldDescription)),
		},
		Facts: contextFacts(r.get(fieldContext)),
	}
	res.Property.Latitude, res.Property.Longitude = coordinates(r.get(fieldLatitude), r.get(fieldLongitude))

	res.Estimate.Address = String(r.get(fieldAddress))
	if kind == source.KindPage {
		res.Price = Float(r.get(fieldPrice))
		return res, nil
	}

	res.Estimate.Value = Float(r.get(fieldValue))
	if currency := String(r.get(fieldCurrency)); currency != "" {
		res.Estimate.Currency = &currency
	} else if res.Estimate.Value != nil {
		def := DefaultCurrency
		res.Estimate.Currency = &def
	}
	if date := String(r.get(fieldLastSaleDate)); date != "" {
		res.Estimate.LastSaleDate = &date
	}
	res.Estimate.SaleHistoryJSON = saleHistory(r.get(fieldSaleHistory))
	res.Price = res.Estimate.Value
	return res, nil
}

func coordinates(latRaw, lonRaw any) (*float64, *float64) {
	lat, lon := Float(latRaw), Float(lonRaw)
	if lat == nil || lon == nil {
		return nil, nil
	}
	if !worldBound.Contains(orb.Point{*lon, *lat}) {
		return nil, nil
	}
	return lat, lon
}

func saleHistory(v any) *string {
	switch h := v.(type) {
	case nil:
		return nil
	case string:
		if h == "" || !json.Valid([]byte(h)) {
			return nil
		}
		return &h
	default:
		data, err := json.Marshal(h)
		if err != nil {
			return nil
		}
		s := string(data)
		return &s
	}
}

func contextFacts(v any) map[string]string {
	var m map[string]any
	switch c := v.(type) {
	case map[string]any:
		m = c
	case source.Payload:
		m = c
	}
	if len(m) == 0 {
		return nil
	}
	facts := make(map[string]string, len(m))
	for k, val := range m {
		if val == nil {
			continue
		}
		facts[k] = String(val)
	}
	return facts
}
