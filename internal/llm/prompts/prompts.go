// Package prompts renders the LLM prompts used to narrate reports.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var reportDataRegex = regexp.MustCompile(`(?i)</?\s*report-data\b[^>]*>`)

// maxLineRunes caps each data line passed to a template.
const maxLineRunes = 300

// Variant selects how much detail a summary asks for.
type Variant string

const (
	// VariantBrief asks for a headline and a couple of bullet points.
	VariantBrief Variant = "brief"
	// VariantStandard is the default.
	VariantStandard Variant = "standard"
	// VariantDetailed asks for advice as well as observations.
	VariantDetailed Variant = "detailed"
)

// Variants lists every variant.
var Variants = []Variant{VariantBrief, VariantStandard, VariantDetailed}

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range Variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// SummaryData holds template data for summary prompts.
type SummaryData struct {
	Role           string
	Language       string
	View           string
	Points         []string
	QuestionPoints []string
	Repeated       []string
	QuestionCount  int
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// Load parses the embedded templates. It is safe to call more than once.
func Load() error {
	loadOnce.Do(func() {
		templates, loadErr = parse(templateFS)
	})
	return loadErr
}

func parse(fsys fs.FS) (map[Variant]*template.Template, error) {
	out := make(map[Variant]*template.Template, len(Variants))
	for _, v := range Variants {
		name := "templates/summary_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(string(v)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		out[v] = tmpl
	}
	return out, nil
}

// BuildSummaryPrompt renders the summary prompt for variant.
func BuildSummaryPrompt(variant Variant, data SummaryData) (string, error) {
	if err := Load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data.View = sanitize(data.View)
	data.Points = sanitizeAll(data.Points)
	data.QuestionPoints = sanitizeAll(data.QuestionPoints)
	data.Repeated = sanitizeAll(data.Repeated)
	if data.Language == "" {
		data.Language = "English"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAll(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = sanitize(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// sanitize strips data delimiters, flattens newlines and truncates.
func sanitize(s string) string {
	s = reportDataRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxLineRunes {
		s = string([]rune(s)[:maxLineRunes]) + "…"
	}
	return s
}
