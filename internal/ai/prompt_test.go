package ai

import (
	"strings"
	"testing"
)

func TestExtractJSONFencedObject(t *testing.T) {
	text := "Sure, here is the plan:\n```json\n{\"title\": \"build it\", \"count\": 3}\n```\nLet me know."
	raw, err := extractJSON(text)
	if err != nil {
		t.Fatalf("extractJSON failed: %v", err)
	}
	if string(raw) != `{"title": "build it", "count": 3}` {
		t.Errorf("unexpected payload %s", raw)
	}
}

func TestExtractJSONArrayInProse(t *testing.T) {
	text := "The scores came out as [3, 7, 9] overall."
	raw, err := extractJSON(text)
	if err != nil {
		t.Fatalf("extractJSON failed: %v", err)
	}
	if string(raw) != "[3, 7, 9]" {
		t.Errorf("unexpected payload %s", raw)
	}
}

func TestExtractJSONObjectContainingArray(t *testing.T) {
	text := `{"subtasks": [{"id": 1}, {"id": 2}]}`
	raw, err := extractJSON(text)
	if err != nil {
		t.Fatalf("extractJSON failed: %v", err)
	}
	if string(raw) != text {
		t.Errorf("expected whole object back, got %s", raw)
	}
}

func TestExtractJSONArrayBeforeObject(t *testing.T) {
	text := `[1, 2] and then {"a": 1}`
	raw, err := extractJSON(text)
	if err != nil {
		t.Fatalf("extractJSON failed: %v", err)
	}
	// The earliest value wins.
	if string(raw) != "[1, 2]" {
		t.Errorf("expected the leading array, got %s", raw)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	_, err := extractJSON("I am unable to answer that in JSON form.")
	if err == nil {
		t.Fatal("expected error when no JSON present")
	}
	if !strings.Contains(err.Error(), "no JSON found") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestExtractJSONInvalidPayload(t *testing.T) {
	_, err := extractJSON("{this is not json}")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestExtractJSONUnterminated(t *testing.T) {
	_, err := extractJSON(`{"open": true`)
	if err == nil {
		t.Fatal("expected error for unterminated JSON")
	}
}

func TestPreviewTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 500)
	p := preview(long)
	if len(p) >= 500 {
		t.Errorf("preview did not truncate, got %d chars", len(p))
	}
	if !strings.HasSuffix(p, "(truncated)") {
		t.Errorf("expected truncation marker, got %q", p[len(p)-30:])
	}
}

func TestStructuredRejectsTextResult(t *testing.T) {
	r := &Result{Kind: ShapeText, Text: "plain"}
	var v map[string]any
	if err := r.Structured(&v); err == nil {
		t.Fatal("expected error decoding a text result")
	}
}
