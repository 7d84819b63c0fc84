package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape declares what the caller expects back from a prompt.
type Shape string

const (
	// ShapeText returns the raw model text.
	ShapeText Shape = "text"
	// ShapeStructured extracts a JSON payload from the model text.
	ShapeStructured Shape = "structured"
)

// PromptSpec describes one prompt to run. The orchestrator knows
// nothing about tasks; callers build the text.
type PromptSpec struct {
	// System is the system prompt. Empty omits it.
	System string
	// Prompt is the user message.
	Prompt string
	// Shape selects text or structured normalization.
	Shape Shape
	// MaxTokens overrides the role's budget when positive.
	MaxTokens int64
}

// Result is the normalized outcome of a Run call.
type Result struct {
	// Kind mirrors the requested shape.
	Kind Shape
	// Text is the full model text, always populated.
	Text string
	// Payload is the extracted JSON document for structured results.
	Payload json.RawMessage

	// Provider and Model identify who actually served the call, which
	// differs from the requested role's config after a fallback.
	Provider string
	Model    string
	Role     Role
	// Attempts counts provider attempts across primary and fallback.
	Attempts int
}

// Structured decodes the payload into v.
func (r *Result) Structured(v any) error {
	if r.Kind != ShapeStructured {
		return fmt.Errorf("result is %s, not structured", r.Kind)
	}
	return json.Unmarshal(r.Payload, v)
}

// extractJSON pulls the first JSON object or array out of model text,
// tolerating markdown fences and prose around it.
func extractJSON(text string) (json.RawMessage, error) {
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	var start int
	var closer byte
	switch {
	case objStart == -1 && arrStart == -1:
		return nil, fmt.Errorf("no JSON found in response (%d chars): %q", len(text), preview(text))
	case arrStart == -1 || (objStart != -1 && objStart < arrStart):
		start, closer = objStart, '}'
	default:
		start, closer = arrStart, ']'
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return nil, fmt.Errorf("unterminated JSON in response: %q", preview(text))
	}

	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("invalid JSON in response: %q", preview(text))
	}
	return json.RawMessage(candidate), nil
}

// preview truncates model output for error messages.
func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		return text[:200] + "... (truncated)"
	}
	return text
}
