package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/pkg/pagination"
)

// System defines the public contract for catalog operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Product], error)

	Find(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	FindBySKUs(ctx context.Context, skus []string) ([]Product, error)
}
