package stages

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/catalog"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
)

// skuPattern matches product code tokens in document text: an uppercase
// alphabetic prefix, a hyphen, and a numeric suffix (e.g. PDK-10442).
var skuPattern = regexp.MustCompile(`[A-Z]{2,5}-[0-9]{3,8}`)

// LookupOutput is the reference-lookup stage result. References carry
// resolved catalog products; UnknownSKUs lists tokens that matched the
// product code shape but resolved to nothing.
type LookupOutput struct {
	References  []catalog.Reference `json:"references"`
	UnknownSKUs []string            `json:"unknown_skus,omitempty"`
}

// LookupStage returns the reference-lookup stage. It scans extracted
// page text for product code tokens and resolves them against the
// catalog in a single batched query.
func LookupStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageReferenceLookup,
		func(ctx context.Context, documentID uuid.UUID, prior pipeline.Outputs) (any, error) {
			extracted, err := pipeline.Output[ExtractOutput](prior, pipeline.StageContentExtraction)
			if err != nil {
				return nil, err
			}

			firstPage := scanSKUs(extracted)
			if len(firstPage) == 0 {
				return LookupOutput{References: []catalog.Reference{}}, nil
			}

			skus := make([]string, 0, len(firstPage))
			for sku := range firstPage {
				skus = append(skus, sku)
			}
			sort.Strings(skus)

			products, err := rt.Catalog.FindBySKUs(ctx, skus)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
			}

			resolved := make(map[string]catalog.Product, len(products))
			for _, product := range products {
				resolved[product.SKU] = product
			}

			output := LookupOutput{References: make([]catalog.Reference, 0, len(products))}
			for _, sku := range skus {
				product, ok := resolved[sku]
				if !ok {
					output.UnknownSKUs = append(output.UnknownSKUs, sku)
					continue
				}
				output.References = append(output.References, catalog.Reference{
					SKU:        sku,
					Product:    product,
					PageNumber: firstPage[sku],
				})
			}

			rt.Logger.InfoContext(
				ctx, "reference lookup complete",
				"document_id", documentID,
				"resolved", len(output.References),
				"unknown", len(output.UnknownSKUs),
			)
			return output, nil
		},
	)
}

// scanSKUs collects distinct product code tokens with the first page
// each appears on.
func scanSKUs(extracted ExtractOutput) map[string]int {
	firstPage := make(map[string]int)
	for _, page := range extracted.Pages {
		for _, sku := range skuPattern.FindAllString(page.Text, -1) {
			if _, seen := firstPage[sku]; !seen {
				firstPage[sku] = page.PageNumber
			}
		}
	}
	return firstPage
}
