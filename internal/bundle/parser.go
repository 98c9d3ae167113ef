package bundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// BundleParser deserializes a session bundle file back into structured data.
type BundleParser interface {
	Parse(data []byte) (*SessionBundle, error)
}

// JSONParser parses a JSON-encoded SessionBundle.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*SessionBundle, error) {
	var bundle SessionBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse JSON bundle: %w", err)
	}
	return &bundle, nil
}

// MarkdownParser parses a Markdown-rendered SessionBundle by extracting the
// embedded base64 JSON payload from the sentinel comments.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*SessionBundle, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a valid capture bundle: missing version sentinel")
	}

	const prefix = dataPrefix
	const suffix = " -->"
	start := strings.Index(content, prefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid capture bundle: missing data payload")
	}
	start += len(prefix)
	end := strings.Index(content[start:], suffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid capture bundle: malformed data payload")
	}
	encoded := content[start : start+end]

	jsonBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not a valid capture bundle: corrupted base64 payload: %w", err)
	}

	var bundle SessionBundle
	if err := json.Unmarshal(jsonBytes, &bundle); err != nil {
		return nil, fmt.Errorf("not a valid capture bundle: failed to parse embedded JSON: %w", err)
	}

	return &bundle, nil
}
