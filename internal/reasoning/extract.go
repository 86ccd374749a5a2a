package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Extraction failure modes are distinct from call failures so retry
// logic can tell "the model's answer was malformed" apart from "the
// network call failed".
var (
	// ErrNoJSON means the response contained no JSON object or array.
	ErrNoJSON = errors.New("no JSON found in response")
	// ErrUnbalancedJSON means a JSON value started but never closed
	// (typically a truncated response).
	ErrUnbalancedJSON = errors.New("unbalanced JSON in response")
)

// codeBlockPattern matches markdown code fences with an optional
// language tag.
var codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON recovers a JSON document from free-form model text.
// Fenced ```json blocks are preferred; otherwise the first balanced
// object or array is sliced out, string- and escape-aware.
func ExtractJSON(text string) (string, error) {
	if fenced, ok := extractFromFence(text); ok {
		return fenced, nil
	}

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}

	candidate, ok := sliceBalanced(text[start:])
	if !ok {
		return "", ErrUnbalancedJSON
	}
	if !json.Valid([]byte(candidate)) {
		return "", fmt.Errorf("extracted text is not valid JSON")
	}
	return candidate, nil
}

// Unmarshal extracts JSON from text and decodes it into out. Both
// extraction and decode failures are transient: the model may produce
// a well-formed answer on retry.
func Unmarshal(text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Transient(err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return Transient(fmt.Errorf("failed to decode structured response: %w", err))
	}
	return nil
}

// CompleteJSON performs one structured call: prompt the client, pull
// JSON from the reply, decode into out. Designed to run inside Do.
func CompleteJSON(ctx context.Context, c Client, systemPrompt, userPrompt string, out any) error {
	text, err := c.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	return Unmarshal(text, out)
}

func extractFromFence(text string) (string, bool) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(text, -1) {
		if len(match) < 3 {
			continue
		}
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if !strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
			continue
		}
		if json.Valid([]byte(content)) {
			return content, true
		}
	}
	return "", false
}

// sliceBalanced returns the prefix of text that forms one complete
// JSON value, tracking nesting depth outside string literals.
func sliceBalanced(text string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[:i+1], true
			}
		}
	}
	return "", false
}
