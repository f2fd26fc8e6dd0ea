package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "spool over capacity"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "spool over capacity") {
		t.Fatalf("expected blocking message in error, got %q", err.Error())
	}
}

func TestResultMergeEmptyKeepsOriginal(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
	if len(engine.Rules()) != 1 {
		t.Fatalf("expected one registered rule")
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := Invalid("gramsUsed", "must be positive")
	if !IsValidation(err) || IsNotFound(err) {
		t.Fatalf("expected validation error classification")
	}
	wrapped := errors.Join(errors.New("outer"), ErrNotFound{Collection: CollectionSpools, ID: "s1"})
	if !IsNotFound(wrapped) {
		t.Fatalf("expected not-found classification through wrapping")
	}
	if got := (&ImportFormatError{Collection: CollectionSpools, Index: 2, Reason: "missing id"}).Error(); got != "import format: spools[2]: missing id" {
		t.Fatalf("unexpected import error text %q", got)
	}
	if got := (&ImportFormatError{Reason: "not json"}).Error(); got != "import format: not json" {
		t.Fatalf("unexpected import error text %q", got)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, Reader, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, Reader, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type emptyView struct{}

func (emptyView) Read(Collection, string) (json.RawMessage, bool, error) { return nil, false, nil }
func (emptyView) ReadAll(Collection) ([]json.RawMessage, error)          { return nil, nil }
func (emptyView) ReadIndex(Collection, string, string) ([]json.RawMessage, error) {
	return nil, nil
}
