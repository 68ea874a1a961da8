package analyze

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/tagrec/internal/domain"
)

// verifyOutput is the required shape of a prior-tag verification reply.
type verifyOutput struct {
	Appropriate   []string
	Inappropriate []string
	Reasons       map[string]string
}

// contentOutput is the required shape of a content-analysis reply.
type contentOutput struct {
	Recommended []string
	Reasons     map[string]string
}

const fence = "```"

// stripFences extracts the payload of a markdown code block.
// A json-labelled block (any case) is preferred; otherwise the first block is
// used. The language label after the opening fence is dropped.
func stripFences(content string) string {
	start := -1
	for i := 0; ; {
		j := strings.Index(content[i:], fence)
		if j < 0 {
			break
		}
		j += i
		if start < 0 {
			start = j
		}
		if rest := content[j+len(fence):]; len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			start = j
			break
		}
		i = j + len(fence)
	}
	if start < 0 {
		return strings.TrimSpace(content)
	}

	body := strings.TrimLeftFunc(content[start+len(fence):], isLabelRune)
	body, _, _ = strings.Cut(body, fence)
	return strings.TrimSpace(body)
}

func isLabelRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
}

func decodeVerify(content string) (verifyOutput, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return verifyOutput{}, err
	}
	var out verifyOutput
	if out.Appropriate, err = requiredStrings(obj, "appropriate_tags"); err != nil {
		return verifyOutput{}, err
	}
	if out.Inappropriate, err = requiredStrings(obj, "inappropriate_tags"); err != nil {
		return verifyOutput{}, err
	}
	if out.Reasons, err = optionalReasons(obj); err != nil {
		return verifyOutput{}, err
	}
	return out, nil
}

func decodeContent(content string) (contentOutput, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return contentOutput{}, err
	}
	var out contentOutput
	if out.Recommended, err = requiredStrings(obj, "recommended_tags"); err != nil {
		return contentOutput{}, err
	}
	if out.Reasons, err = optionalReasons(obj); err != nil {
		return contentOutput{}, err
	}
	return out, nil
}

func decodeObject(content string) (map[string]json.RawMessage, error) {
	body := stripFences(content)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", domain.ErrMalformedResponse)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", domain.ErrMalformedResponse)
	}
	return obj, nil
}

func requiredStrings(obj map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", domain.ErrMalformedResponse, key)
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: %q must be a list of strings", domain.ErrMalformedResponse, key)
	}
	return items, nil
}

// optionalReasons accepts a missing or null "reasons"; otherwise it must be an object.
// Non-string values are ignored.
func optionalReasons(obj map[string]json.RawMessage) (map[string]string, error) {
	reasons := make(map[string]string)
	raw, ok := obj["reasons"]
	if !ok || string(raw) == "null" {
		return reasons, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: \"reasons\" must be an object", domain.ErrMalformedResponse)
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			reasons[strings.TrimSpace(k)] = s
		}
	}
	return reasons, nil
}
