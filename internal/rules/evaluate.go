package rules

import (
	"fmt"
	"strings"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

// PageText is one page of extracted document text.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Evaluate applies every rule in the set to the extracted pages and
// returns the resulting issues. Evaluation is deterministic: issues
// carry full confidence, and issue order follows rule order then page
// order.
func Evaluate(set *RuleSet, pages []PageText) []compliance.Issue {
	issues := make([]compliance.Issue, 0)

	for _, rule := range set.Rules {
		switch rule.Kind {
		case KindRequiredTerm:
			if !anyPageContains(pages, rule.Term) {
				issues = append(issues, newIssue(rule, ""))
			}
		case KindForbiddenTerm:
			for _, page := range pages {
				if containsFold(page.Text, rule.Term) {
					issues = append(issues, newIssue(rule, fmt.Sprintf("page %d", page.PageNumber)))
				}
			}
		}
	}

	return issues
}

func newIssue(rule Rule, location string) compliance.Issue {
	return compliance.Issue{
		ID:         fmt.Sprintf("%s-%s", rule.ID, issueSuffix(location)),
		Severity:   rule.Severity,
		Category:   rule.Category,
		Message:    rule.Message,
		Location:   location,
		Suggestion: rule.Suggestion,
		Confidence: 1.0,
		RuleID:     rule.ID,
	}
}

func issueSuffix(location string) string {
	if location == "" {
		return "document"
	}
	return strings.ReplaceAll(location, " ", "-")
}

func anyPageContains(pages []PageText, term string) bool {
	for _, page := range pages {
		if containsFold(page.Text, term) {
			return true
		}
	}
	return false
}

func containsFold(text, term string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
