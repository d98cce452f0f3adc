package rules_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/internal/rules"
)

const sampleRuleSet = `{
  "name": "baseline",
  "version": "1.0.0",
  "rules": [
    {
      "id": "safety-warning-present",
      "kind": "required-term",
      "term": "safety warning",
      "severity": "critical",
      "category": "safety",
      "message": "document lacks a safety warning"
    },
    {
      "id": "no-draft-markings",
      "kind": "forbidden-term",
      "term": "draft",
      "severity": "high",
      "category": "publication",
      "message": "document carries draft markings"
    }
  ]
}`

func writeRuleSet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rule set: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	set, err := rules.Load(writeRuleSet(t, sampleRuleSet))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if set.Name != "baseline" || set.Version != "1.0.0" {
		t.Errorf("metadata: got %s/%s", set.Name, set.Version)
	}
	if len(set.Rules) != 2 {
		t.Fatalf("rules: got %d, want 2", len(set.Rules))
	}
	if set.Rules[0].Kind != rules.KindRequiredTerm {
		t.Errorf("rule kind: got %s, want %s", set.Rules[0].Kind, rules.KindRequiredTerm)
	}
	if set.Rules[1].Severity != compliance.SeverityHigh {
		t.Errorf("rule severity: got %s, want %s", set.Rules[1].Severity, compliance.SeverityHigh)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := rules.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	if _, err := rules.Load(writeRuleSet(t, "{not json")); err == nil {
		t.Error("expected error for malformed JSON, got nil")
	}
}

func TestLoadRejectsInvalidSet(t *testing.T) {
	_, err := rules.Load(writeRuleSet(t, `{"name": "empty", "version": "1.0.0", "rules": []}`))
	if !errors.Is(err, rules.ErrEmptySet) {
		t.Errorf("load: got %v, want ErrEmptySet", err)
	}
}

func TestBundledRuleSetIsValid(t *testing.T) {
	set, err := rules.Load(filepath.Join("..", "..", "rules.json"))
	if err != nil {
		t.Fatalf("bundled rule set failed to load: %v", err)
	}
	if len(set.Rules) == 0 {
		t.Error("bundled rule set has no rules")
	}
}
