package slots

import (
	"slices"
	"testing"
)

func TestFromMap(t *testing.T) {
	t.Parallel()

	got, err := FromMap(map[string]any{
		"role_title": " python engineer ",
		"stack":      "Go, JS, go",
		"budget":     map[string]any{"min": "18", "max": 22, "currency": "₹", "unit": "lpa"},
		"unknown":    "ignored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.RoleTitle != "python engineer" {
		t.Fatalf("unexpected role: %q", got.RoleTitle)
	}
	if !slices.Equal(got.Stack, []string{"go", "javascript"}) {
		t.Fatalf("unexpected stack: %v", got.Stack)
	}
	if got.Budget == nil || *got.Budget.Min != 18 || *got.Budget.Max != 22 || got.Budget.Unit != "lpa" {
		t.Fatalf("unexpected budget: %+v", got.Budget)
	}
}

func TestFromMapBudgetText(t *testing.T) {
	t.Parallel()

	got, err := FromMap(map[string]any{"budget": "18-22 LPA", "stack": []any{"react", "node"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Budget == nil || got.Budget.Currency != "₹" || *got.Budget.Max != 22 {
		t.Fatalf("unexpected budget: %+v", got.Budget)
	}
	if !slices.Equal(got.Stack, []string{"react", "nodejs"}) {
		t.Fatalf("unexpected stack: %v", got.Stack)
	}
}

func TestFromMapEmpty(t *testing.T) {
	t.Parallel()

	got, err := FromMap(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("expected empty slots, got %+v", got)
	}
}

func TestFromMapRejectsWrongShape(t *testing.T) {
	t.Parallel()

	if _, err := FromMap(map[string]any{"budget": []any{1, 2}}); err == nil {
		t.Fatalf("expected decode error")
	}
}
