// Package gemini implements llm.Capability on the Gemini API through the
// google.golang.org/genai SDK, with a JSON response schema.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
)

const DefaultModel = "gemini-2.5-flash-lite"

// Config for the Gemini client. BaseURL is optional and overrides the
// Gemini API endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// ContentAPI is the part of the genai SDK the client uses. *genai.Models
// satisfies it.
type ContentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg    Config
	api    ContentAPI
	logger *slog.Logger
}

// NewClient builds a genai client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = withDefaults(cfg)
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewClientWithAPI(gc.Models, cfg, logger), nil
}

func NewClientWithAPI(api ContentAPI, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: withDefaults(cfg), api: api, logger: logger}
}

func withDefaults(cfg Config) Config {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return cfg
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	start := time.Now()
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.cfg.Temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(req.Schema),
	}

	resp, err := c.api.GenerateContent(ctx, c.cfg.Model, genai.Text(req.Prompt), config)
	if err != nil {
		c.logger.Error("llm.gemini.failed", "req_id", common.RequestIDFromContext(ctx), "model", c.cfg.Model, "error", err)
		return "", common.NewExternalServiceError(c.Name(), "generate content", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return "", common.NewExternalServiceError(c.Name(), "generate content", errors.New(reason))
	}

	var sb strings.Builder
	if content := resp.Candidates[0].Content; content != nil {
		for _, p := range content.Parts {
			if p != nil && !p.Thought {
				sb.WriteString(p.Text)
			}
		}
	}
	c.logger.Info("llm.gemini.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"model", c.cfg.Model,
		"finish_reason", resp.Candidates[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sb.String(), nil
}

// ResponseSchema converts a JSON Schema map into a genai schema. A
// ["number","null"] union becomes a nullable number; additionalProperties is
// dropped because Gemini does not accept it. Properties are ordered as in
// "required".
func ResponseSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{}
	t, nullable := schemaType(schema["type"])
	out.Type = t
	if nullable {
		out.Nullable = genai.Ptr(true)
	}
	if d, ok := schema["description"].(string); ok {
		out.Description = d
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = ResponseSchema(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = ResponseSchema(items)
	}
	if req, ok := schema["required"].([]string); ok {
		out.Required = req
		out.PropertyOrdering = req
	}
	return out
}

func schemaType(v any) (genai.Type, bool) {
	var names []string
	switch t := v.(type) {
	case string:
		names = []string{t}
	case []string:
		names = t
	case []any:
		for _, s := range t {
			names = append(names, fmt.Sprint(s))
		}
	}
	var (
		main     genai.Type = genai.TypeString
		nullable bool
	)
	for _, n := range names {
		switch n {
		case "null":
			nullable = true
		case "object":
			main = genai.TypeObject
		case "array":
			main = genai.TypeArray
		case "number":
			main = genai.TypeNumber
		case "integer":
			main = genai.TypeInteger
		case "boolean":
			main = genai.TypeBoolean
		case "string":
			main = genai.TypeString
		}
	}
	return main, nullable
}
