package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/pkg/pagination"
	"github.com/sampoursoltan11/paddock-sub000/pkg/query"
	"github.com/sampoursoltan11/paddock-sub000/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a catalog repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "catalog"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Product], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SKU", "Name", "Brand")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	products, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	result := pagination.NewPageResult(products, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Product, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanProduct)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	q, args := query.NewBuilder(projection).BuildSingle("SKU", sku)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanProduct)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) FindBySKUs(ctx context.Context, skus []string) ([]Product, error) {
	if len(skus) == 0 {
		return []Product{}, nil
	}

	values := make([]any, len(skus))
	for i, sku := range skus {
		values[i] = sku
	}

	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereIn("SKU", values).
		Build()

	products, err := repository.QueryMany(ctx, r.db, q, args, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("query products by sku: %w", err)
	}

	return products, nil
}
