// Package catalog implements the product reference catalog for Paddock.
// The reference-lookup stage resolves product codes found in document
// text against this catalog so the compliance report can name the
// products a document describes.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is one referenced product in the catalog.
type Product struct {
	ID          uuid.UUID `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reference is a resolved product mention within a document.
type Reference struct {
	SKU        string  `json:"sku"`
	Product    Product `json:"product"`
	PageNumber int     `json:"page_number"`
}
