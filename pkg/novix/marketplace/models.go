package marketplace

import (
	"time"
)

// Agent types
const (
	AgentTypeCustom = "custom"
	AgentTypeEliza  = "eliza"
)

// Listing is an agent offered on the marketplace
type Listing struct {
	ID            uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	CreatedAt     time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"-"`
	Name          string    `gorm:"not null;index" json:"name" yaml:"name"`
	Username      string    `json:"username,omitempty" yaml:"username"`
	Summary       string    `gorm:"not null" json:"summary" yaml:"summary"`
	Description   string    `gorm:"not null" json:"description" yaml:"description"`
	Topics        []string  `gorm:"serializer:json;type:text" json:"topics" yaml:"topics"`
	Tags          []string  `gorm:"serializer:json;type:text" json:"tags,omitempty" yaml:"tags"`
	Price         float64   `gorm:"index" json:"price" yaml:"price"`
	Credits       float64   `gorm:"index;default:10" json:"credits" yaml:"credits"`
	PricingModel  string    `json:"pricingModel,omitempty" yaml:"pricingModel"`
	AgentType     string    `gorm:"index" json:"agentType" yaml:"agentType"`
	Owner         string    `gorm:"index" json:"owner,omitempty" yaml:"owner"`
	InputExample  string    `json:"inputExample,omitempty" yaml:"inputExample"`
	OutputExample string    `json:"outputExample,omitempty" yaml:"outputExample"`
}

// Range bounds a numeric filter; nil ends are open
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Filters narrows a search
type Filters struct {
	Price        *Range   `json:"price,omitempty"`
	Credits      *Range   `json:"credits,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	AgentType    string   `json:"agentType,omitempty"`
	PricingModel string   `json:"pricingModel,omitempty"`
	Owner        string   `json:"owner,omitempty"`
}

// Sort fields and orders
const (
	SortScore   = "score"
	SortPrice   = "price"
	SortCredits = "credits"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Sort orders search results
type Sort struct {
	Field string `json:"field,omitempty"`
	Order string `json:"order,omitempty"`
}

// Query is a catalog search request
type Query struct {
	Query      string  `json:"query,omitempty"`
	MaxResults int     `json:"maxResults,omitempty"`
	Skip       int     `json:"skip,omitempty"`
	Filters    Filters `json:"filters,omitempty"`
	Sort       Sort    `json:"sort,omitempty"`
}

// SearchResult is one page of listings
type SearchResult struct {
	Results    []Listing `json:"results"`
	Count      int       `json:"count"`
	TotalCount int64     `json:"totalCount"`
}
