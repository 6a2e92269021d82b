// Package judge calls a multimodal reasoning provider to rate how well a
// submitted photograph matches its quest. The provider is untrusted input:
// every sub-score is clamped on receipt and the response text is searched
// for the first well-formed JSON object, since models sometimes wrap JSON
// in prose despite being asked not to.
package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Defaults for the judge client.
const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultTimeout = 30 * time.Second
)

// NeutralScore substitutes for each judge sub-score when no provider is
// configured and the pipeline runs in heuristic-only mode.
const NeutralScore = 0.5

// Client errors.
var (
	ErrMissingAPIKey = errors.New("api key is required")
	ErrNoJSON        = errors.New("no JSON object found in provider response")
	ErrEmptyResponse = errors.New("provider returned no candidates")
)

// QuestContext is the textual quest description sent alongside the image.
type QuestContext struct {
	Title        string
	Description  string
	LocationText string
}

// Judgment holds the provider's four normalized sub-scores and rationale.
// All scores are clamped into [0, 1] before the value is returned.
type Judgment struct {
	QuestMatch       float64 `json:"quest_match"`
	VisualSceneMatch float64 `json:"visual_scene_match"`
	AIAuthenticity   float64 `json:"ai_authenticity"`
	SceneRelevance   float64 `json:"scene_relevance"`
	Rationale        string  `json:"reason"`

	// Model identifies which provider model produced the judgment.
	Model string `json:"model,omitempty"`
}

// Client is a judge backed by the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// ClientConfig configures a judge client. APIKey is required; everything
// else has a default.
type ClientConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a judge client. The underlying HTTP transport is
// instrumented with OpenTelemetry so judge latency shows up in traces.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Model returns the provider model identifier this client uses.
func (c *Client) Model() string {
	return c.model
}

// Request/response wire shapes for the generateContent API.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// judgmentWire is the JSON shape requested from the model.
type judgmentWire struct {
	QuestMatch       float64 `json:"quest_match"`
	VisualSceneMatch float64 `json:"visual_scene_match"`
	AIAuthenticity   float64 `json:"ai_authenticity"`
	SceneRelevance   float64 `json:"scene_relevance"`
	Reason           string  `json:"reason"`
}

// Judge sends the image inline with the quest context and parses the
// provider's scores. The image is transmitted by value rather than by URL
// so a provider-side fetch failure cannot fail the call.
func (c *Client) Judge(ctx context.Context, image []byte, mimeType string, quest QuestContext) (*Judgment, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []part{
		{Text: buildPrompt(quest)},
		{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	}

	text, err := c.generate(ctx, parts, true)
	if err != nil {
		return nil, err
	}

	wire, err := parseJudgment(text)
	if err != nil {
		return nil, err
	}

	return &Judgment{
		QuestMatch:       clamp01(wire.QuestMatch),
		VisualSceneMatch: clamp01(wire.VisualSceneMatch),
		AIAuthenticity:   clamp01(wire.AIAuthenticity),
		SceneRelevance:   clamp01(wire.SceneRelevance),
		Rationale:        strings.TrimSpace(wire.Reason),
		Model:            c.model,
	}, nil
}

// Describe requests a free-form analysis report for the photo: a prose
// description of what the image shows and anything suspicious about it.
// Used by the secondary specialist checks, never by the primary verdict.
func (c *Client) Describe(ctx context.Context, image []byte, mimeType string, quest QuestContext) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	parts := []part{
		{Text: buildAnalysisPrompt(quest)},
		{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(image),
		}},
	}

	text, err := c.generate(ctx, parts, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// generate posts one generateContent request and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, parts []part, jsonResponse bool) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: parts}},
	}
	if jsonResponse {
		reqBody.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode judge request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read judge response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", fmt.Errorf("failed to decode judge response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// buildPrompt asks for strict JSON with exactly the fields parseJudgment
// expects.
func buildPrompt(quest QuestContext) string {
	var b strings.Builder
	b.WriteString("You are verifying a photograph submitted as proof that a real-world task was completed.\n\n")
	b.WriteString("Task title: ")
	b.WriteString(quest.Title)
	b.WriteString("\n")
	if quest.Description != "" {
		b.WriteString("Task description: ")
		b.WriteString(quest.Description)
		b.WriteString("\n")
	}
	if quest.LocationText != "" {
		b.WriteString("Expected location: ")
		b.WriteString(quest.LocationText)
		b.WriteString("\n")
	}
	b.WriteString(`
Rate the attached photo on four independent axes, each a number between 0.0 and 1.0:
- quest_match: does the photo show the task actually being performed?
- visual_scene_match: does the visible scene match the expected location?
- ai_authenticity: does this look like a real photograph rather than AI-generated or heavily manipulated imagery? (1.0 = certainly real)
- scene_relevance: is the scene plausibly related to the task at all?

Respond with ONLY a JSON object, no surrounding text:
{"quest_match": 0.0, "visual_scene_match": 0.0, "ai_authenticity": 0.0, "scene_relevance": 0.0, "reason": "one or two sentences"}`)
	return b.String()
}

// buildAnalysisPrompt asks for prose, not JSON.
func buildAnalysisPrompt(quest QuestContext) string {
	var b strings.Builder
	b.WriteString("Describe the attached photograph in detail for a human reviewer.\n")
	b.WriteString("It was submitted as proof for the task: ")
	b.WriteString(quest.Title)
	b.WriteString("\n")
	if quest.LocationText != "" {
		b.WriteString("Expected location: ")
		b.WriteString(quest.LocationText)
		b.WriteString("\n")
	}
	b.WriteString("\nNote anything that looks staged, reused, edited, or inconsistent with the task. Keep it under 150 words.")
	return b.String()
}

// parseJudgment locates the first well-formed JSON object in the text and
// decodes it. Returns ErrNoJSON if no balanced object exists.
func parseJudgment(text string) (*judgmentWire, error) {
	raw, ok := firstJSONObject(text)
	if !ok {
		return nil, ErrNoJSON
	}

	var wire judgmentWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("judge response is not valid JSON: %w", err)
	}
	return &wire, nil
}

// firstJSONObject scans for the first balanced top-level {...} span,
// ignoring braces inside string literals.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
