// Package rules provides the compliance rule model, JSON rule set
// loading, and deterministic rule evaluation over extracted document
// text. Rule sets are loaded once at configuration time and injected
// into the compliance-check stage; stages never load rules themselves.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
)

// Kind selects how a rule's term is matched against document text.
type Kind string

// Rule kinds.
const (
	// KindRequiredTerm flags documents that do not contain the term.
	KindRequiredTerm Kind = "required-term"
	// KindForbiddenTerm flags every page that contains the term.
	KindForbiddenTerm Kind = "forbidden-term"
)

// Rule is one compliance rule. Term matching is case-insensitive.
type Rule struct {
	ID         string              `json:"id"`
	Kind       Kind                `json:"kind"`
	Term       string              `json:"term"`
	Severity   compliance.Severity `json:"severity"`
	Category   string              `json:"category"`
	Message    string              `json:"message"`
	Suggestion string              `json:"suggestion,omitempty"`
}

// RuleSet is a named, versioned collection of rules.
type RuleSet struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Rule set errors.
var (
	ErrInvalidRule = errors.New("invalid rule")
	ErrEmptySet    = errors.New("rule set contains no rules")
)

// Load reads and validates a rule set from a JSON file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}

	var set RuleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", path, err)
	}

	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("rule set %s: %w", path, err)
	}

	return &set, nil
}

// Validate checks structural integrity of the rule set.
func (s *RuleSet) Validate() error {
	if len(s.Rules) == 0 {
		return ErrEmptySet
	}

	seen := make(map[string]bool, len(s.Rules))
	for i, rule := range s.Rules {
		if rule.ID == "" {
			return fmt.Errorf("%w: rule %d missing id", ErrInvalidRule, i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("%w: duplicate rule id %s", ErrInvalidRule, rule.ID)
		}
		seen[rule.ID] = true

		if rule.Term == "" {
			return fmt.Errorf("%w: rule %s missing term", ErrInvalidRule, rule.ID)
		}

		switch rule.Kind {
		case KindRequiredTerm, KindForbiddenTerm:
		default:
			return fmt.Errorf("%w: rule %s has unknown kind %q", ErrInvalidRule, rule.ID, rule.Kind)
		}

		switch rule.Severity {
		case compliance.SeverityCritical, compliance.SeverityHigh,
			compliance.SeverityMedium, compliance.SeverityLow:
		default:
			return fmt.Errorf("%w: rule %s has unknown severity %q", ErrInvalidRule, rule.ID, rule.Severity)
		}
	}

	return nil
}
