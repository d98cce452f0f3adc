package stages

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
	"github.com/sampoursoltan11/paddock-sub000/internal/rules"
)

// CheckOutput is the compliance-check stage result.
type CheckOutput struct {
	Issues         []compliance.Issue `json:"issues"`
	RulesEvaluated int                `json:"rules_evaluated"`
	PagesEvaluated int                `json:"pages_evaluated"`
}

// CheckStage returns the compliance-check stage. It evaluates the loaded
// rule set against extracted page text and, when reference lookup ran,
// flags product codes that resolved to nothing in the catalog.
func CheckStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageComplianceCheck,
		func(ctx context.Context, documentID uuid.UUID, prior pipeline.Outputs) (any, error) {
			extracted, err := pipeline.Output[ExtractOutput](prior, pipeline.StageContentExtraction)
			if err != nil {
				return nil, err
			}

			issues := rules.Evaluate(rt.Rules, extracted.Pages)

			if prior.Has(pipeline.StageReferenceLookup) {
				lookup, err := pipeline.Output[LookupOutput](prior, pipeline.StageReferenceLookup)
				if err != nil {
					return nil, err
				}
				issues = append(issues, unknownReferenceIssues(lookup)...)
			}

			rt.Logger.InfoContext(
				ctx, "compliance check complete",
				"document_id", documentID,
				"rules", len(rt.Rules.Rules),
				"issues", len(issues),
			)
			return CheckOutput{
				Issues:         issues,
				RulesEvaluated: len(rt.Rules.Rules),
				PagesEvaluated: len(extracted.Pages),
			}, nil
		},
	)
}

// unknownReferenceIssues turns unresolved product code tokens into
// medium-severity findings.
func unknownReferenceIssues(lookup LookupOutput) []compliance.Issue {
	issues := make([]compliance.Issue, 0, len(lookup.UnknownSKUs))
	for _, sku := range lookup.UnknownSKUs {
		issues = append(issues, compliance.Issue{
			ID:         fmt.Sprintf("unknown-reference-%s", sku),
			Severity:   compliance.SeverityMedium,
			Category:   "references",
			Message:    fmt.Sprintf("product code %s does not resolve to a catalog entry", sku),
			Suggestion: "verify the product code or register the product in the catalog",
			Confidence: 1.0,
		})
	}
	return issues
}
