package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edugenai/insights/internal/llm/prompts"
	"github.com/edugenai/insights/internal/model"
	"github.com/edugenai/insights/internal/report"

	openai "github.com/sashabaranov/go-openai"
)

// Summary is the LLM's narrative reading of one report.
type Summary struct {
	Headline   string   `json:"headline"`
	Highlights []string `json:"highlights"`
	Concerns   []string `json:"concerns"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. variant must be a known prompt variant.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid summary variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Ping checks that the endpoint answers and serves the configured model.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model || strings.TrimSuffix(m.ID, ":latest") == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by endpoint", c.model)
}

// Summarize asks the LLM to narrate r as seen through view. language
// names the language the summary should be written in.
func (c *Client) Summarize(ctx context.Context, view model.ViewState, r report.Report, language string) (*Summary, error) {
	prompt, err := prompts.BuildSummaryPrompt(c.variant, summaryData(view, r, language))
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseSummary(raw)
}

func parseSummary(raw string) (*Summary, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if s.Headline == "" {
		return nil, fmt.Errorf("parse LLM response: empty headline (raw: %s)", raw)
	}
	if s.Highlights == nil {
		s.Highlights = []string{}
	}
	if s.Concerns == nil {
		s.Concerns = []string{}
	}
	return &s, nil
}

func summaryData(view model.ViewState, r report.Report, language string) prompts.SummaryData {
	d := prompts.SummaryData{
		Role:          string(view.Role),
		Language:      language,
		View:          describeView(view, r.Kind),
		QuestionCount: len(r.Questions),
	}
	for _, p := range r.Chart {
		d.Points = append(d.Points, describePoint(r.Kind, p))
	}
	for _, p := range r.QuestionChart {
		d.QuestionPoints = append(d.QuestionPoints, fmt.Sprintf("%s: %.0f%%", p.Name, p.Performance))
	}
	for _, q := range r.Questions {
		if q.IsRepeated {
			d.Repeated = append(d.Repeated, fmt.Sprintf("%s (seen %d times)", q.DisplayText(), q.RepetitionCount))
		}
	}
	return d
}

func describeView(v model.ViewState, kind model.SeriesKind) string {
	var parts []string
	switch kind {
	case model.SeriesByStudent:
		parts = append(parts, "average grade per student")
	case model.SeriesBySubject:
		parts = append(parts, "average grade per subject")
	case model.SeriesTimeline:
		parts = append(parts, "attempts over time")
	default:
		parts = append(parts, "no chart")
	}
	if !model.IsAll(v.SubjectFilter) {
		parts = append(parts, "subject "+v.SubjectFilter)
	}
	if !model.IsAll(v.StudentFilter) {
		parts = append(parts, "student "+v.StudentFilter)
	}
	return strings.Join(parts, ", ")
}

func describePoint(kind model.SeriesKind, p model.ChartPoint) string {
	switch kind {
	case model.SeriesByStudent:
		return fmt.Sprintf("%s: average %.0f%% over %d tests", p.Name, p.AveragePercentage, p.TestCount)
	case model.SeriesBySubject:
		return fmt.Sprintf("%s: average %.0f%%, average score %.0f, over %d tests", p.Name, p.AveragePercentage, p.AverageScore, p.TestCount)
	case model.SeriesTimeline:
		return fmt.Sprintf("%s on %s (%s): %.1f/%.1f, %.0f%%", p.Name, p.Date, p.Subject, p.Score, p.MaxScore, p.Percentage)
	}
	return p.Name
}
