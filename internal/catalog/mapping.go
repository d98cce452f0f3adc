package catalog

import (
	"net/url"

	"github.com/sampoursoltan11/paddock-sub000/pkg/query"
	"github.com/sampoursoltan11/paddock-sub000/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "products", "p").
	Project("id", "ID").
	Project("sku", "SKU").
	Project("name", "Name").
	Project("brand", "Brand").
	Project("description", "Description").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field: "SKU",
}

// Filters contains optional filtering criteria for catalog queries.
// Nil fields are ignored. Brand uses exact matching; Name uses
// case-insensitive contains matching.
type Filters struct {
	Brand *string `json:"brand,omitempty"`
	Name  *string `json:"name,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Brand", f.Brand).
		WhereContains("Name", f.Name)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if b := values.Get("brand"); b != "" {
		f.Brand = &b
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	return f
}

func scanProduct(s repository.Scanner) (Product, error) {
	var p Product
	err := s.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Brand,
		&p.Description,
		&p.CreatedAt,
	)
	return p, err
}
