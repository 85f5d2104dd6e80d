package models

import "time"

// Property is the canonical record for one physical property, unique per LookupKey.
type Property struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	LookupKey     string    `json:"lookup_key" gorm:"size:512;uniqueIndex;not null"`
	SourceURL     string    `json:"source_url,omitempty" gorm:"size:1024"`
	Street        string    `json:"street"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Zip           string    `json:"zip"`
	Bedrooms      *int      `json:"bedrooms"`
	Bathrooms     *float64  `json:"bathrooms"`
	SquareFootage *int      `json:"square_footage"`
	LotSize       *int      `json:"lot_size"`
	YearBuilt     *int      `json:"year_built"`
	PropertyType  string    `json:"property_type"`
	Description   string    `json:"description" gorm:"type:text"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasStructure reports whether any structural or address fact is known.
func (p *Property) HasStructure() bool {
	return p.Street != "" || p.City != "" || p.State != "" || p.Zip != "" ||
		p.Bedrooms != nil || p.Bathrooms != nil || p.SquareFootage != nil ||
		p.LotSize != nil || p.YearBuilt != nil || p.PropertyType != ""
}

// Estimate is a valuation snapshot. PropertyID is nil for standalone estimates.
type Estimate struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	LookupKey       string    `json:"lookup_key" gorm:"size:512;index;not null"`
	Address         string    `json:"address"`
	PropertyID      *uint     `json:"property_id" gorm:"index"`
	Property        *Property `json:"property,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Value           *float64  `json:"estimated_value"`
	Currency        *string   `json:"currency"`
	LastSaleDate    *string   `json:"last_sale_date"`
	SaleHistoryJSON *string   `json:"sale_history_json" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
}

// PriceHistoryEntry is one observed price. Consecutive equal prices are never stored twice.
type PriceHistoryEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PropertyID uint      `json:"property_id" gorm:"not null;index:idx_price_history_property_captured"`
	Property   *Property `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Price      float64   `json:"price" gorm:"not null"`
	CapturedAt time.Time `json:"captured_at" gorm:"not null;index:idx_price_history_property_captured"`
}

func (PriceHistoryEntry) TableName() string {
	return "price_history"
}

// ContextFact is an append-only labeled fact from a secondary source.
type ContextFact struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PropertyID uint      `json:"property_id" gorm:"not null;index"`
	Property   *Property `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Source     string    `json:"source" gorm:"not null"`
	DataKey    string    `json:"data_key" gorm:"not null"`
	DataValue  string    `json:"data_value" gorm:"type:text"`
	CapturedAt time.Time `json:"captured_at" gorm:"not null"`
}

func (ContextFact) TableName() string {
	return "property_context_data"
}

// PropertyStats summarises what is stored for the listing endpoint.
type PropertyStats struct {
	TotalProperties int64 `json:"total_properties"`
	TotalEstimates  int64 `json:"total_estimates"`
	TotalPrices     int64 `json:"total_price_entries"`
	TotalFacts      int64 `json:"total_context_facts"`
}
