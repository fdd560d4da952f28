package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
)

const systemPrompt = "You are a receipt parser. Return ONLY JSON that matches the provided JSON Schema."

func (c *Client) Name() string { return "openai" }

// Generate sends the prompt with the schema as a strict response format and
// returns the first choice's content.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	schema, err := json.Marshal(req.Schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	name := req.SchemaName
	if name == "" {
		name = llm.ExtractionSchemaName
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   name,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		},
	})
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"req_id", rid, "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewExternalServiceError(c.Name(), "create chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", common.NewExternalServiceError(c.Name(), "create chat completion", errors.New("no choices in response"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Info("llm.openai.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
