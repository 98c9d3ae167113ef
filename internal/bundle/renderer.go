package bundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	versionSentinel = "<!-- capture-bundle-version: 1 -->"
	dataPrefix      = "<!-- capture-data: "
)

// BundleRenderer serializes a SessionBundle to bytes.
type BundleRenderer interface {
	Render(bundle *SessionBundle) ([]byte, error)
	Ext() string
}

// RendererFor returns the renderer for format: "json" or anything else for Markdown.
func RendererFor(format string) BundleRenderer {
	if strings.EqualFold(format, "json") {
		return &JSONRenderer{}
	}
	return &MarkdownRenderer{}
}

// JSONRenderer renders a SessionBundle as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(bundle *SessionBundle) ([]byte, error) {
	return json.MarshalIndent(bundle, "", "  ")
}

func (r *JSONRenderer) Ext() string { return ".json" }

// MarkdownRenderer renders a SessionBundle as human-readable Markdown with
// an embedded base64 JSON payload for lossless round-trip parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Ext() string { return ".md" }

func (r *MarkdownRenderer) Render(bundle *SessionBundle) ([]byte, error) {
	jsonBytes, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder

	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s -->\n\n", dataPrefix, encoded)

	meta := bundle.Session
	fmt.Fprintf(&sb, "# Session %s (study %s)\n\n", orDash(meta.ID), orDash(meta.StudyID))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Path: `%s`\n", meta.FullPath)
	fmt.Fprintf(&sb, "- Device: %s\n", orDash(meta.DeviceAddress))
	if !meta.StartTime.IsZero() {
		fmt.Fprintf(&sb, "- Started: %s\n", meta.StartTime.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "- Ended: %s\n", meta.EndTime.Format("2006-01-02 15:04:05 MST"))
	if meta.Duration != "" {
		fmt.Fprintf(&sb, "- Duration: %s\n", meta.Duration)
	}
	if bundle.CSVPath != "" {
		fmt.Fprintf(&sb, "- CSV: `%s`\n", bundle.CSVPath)
	}
	sb.WriteString("\n")

	sb.WriteString("## Trials\n\n")
	if len(bundle.Trials) == 0 {
		sb.WriteString("_No trials recorded._\n")
	} else {
		sb.WriteString("| # | Trial | Started | Note |\n")
		sb.WriteString("|---|-------|---------|------|\n")
		for i, t := range bundle.Trials {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n",
				i+1,
				cell(t.Name),
				t.StartedAt.Format("15:04:05"),
				cell(t.Note),
			)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Videos\n\n")
	if len(bundle.Videos) == 0 {
		sb.WriteString("_No videos listed._\n")
	} else {
		for _, v := range bundle.Videos {
			fmt.Fprintf(&sb, "- %s\n", v)
		}
	}
	sb.WriteString("\n")

	if bundle.Comment != "" {
		sb.WriteString("## Comment\n\n")
		sb.WriteString(bundle.Comment)
		if !strings.HasSuffix(bundle.Comment, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// cell escapes table separators and newlines.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
