package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
	"github.com/manikumarthati/extractionWithValidation/internal/vision"
)

// ValidateAndCorrect implements vision.Model with one Messages call. The page
// image rides along as a file reference so the bytes are never resent.
func (c *Client) ValidateAndCorrect(ctx context.Context, req vision.Request) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("anthropic.validate.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"round", req.RoundIndex,
		"asset_ref", req.AssetRef,
		"strict", req.Strict,
		"history_rounds", len(req.History),
	)

	prompt := vision.BuildValidationPrompt(req)
	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": 0,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{"type": "image", "source": map[string]any{
						"type":    "file",
						"file_id": req.AssetRef,
					}},
				},
			},
		},
	}

	text, err := c.messages(ctx, rid, body, true)
	if err != nil {
		c.logger.Error("anthropic.validate.error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	c.logger.Info("anthropic.validate.ok",
		"req_id", rid, "response_len", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

// ExtractFields produces the round-zero record from raw page text, before
// any validation round runs. Text-only call, no image attached.
func (c *Client) ExtractFields(ctx context.Context, rawText string, s *schema.Schema) (record.Record, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("anthropic.extract.start",
		"req_id", rid, "model", c.cfg.Model, "text_len", len(rawText))

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": 0,
		"messages": []map[string]any{
			{"role": "user", "content": buildExtractionPrompt(rawText, s)},
		},
	}

	text, err := c.messages(ctx, rid, body, false)
	if err != nil {
		c.logger.Error("anthropic.extract.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil, err
	}

	segment, err := correction.ExtractJSONSegment(text)
	if err != nil {
		c.logger.Error("anthropic.extract.no_json", "req_id", rid, "error", err)
		return nil, []byte(text), fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(segment), &rec); err != nil {
		c.logger.Error("anthropic.extract.decode_error", "req_id", rid, "error", err)
		return nil, []byte(segment), fmt.Errorf("%w: decode extracted fields: %v", common.ErrMalformedResponse, err)
	}

	c.logger.Info("anthropic.extract.ok",
		"req_id", rid, "fields", len(rec), "elapsed_ms", time.Since(start).Milliseconds())
	return rec, []byte(segment), nil
}

// messages posts to /v1/messages and concatenates the text content blocks.
// Transport failures and non-2xx statuses wrap ErrProvider so the round
// controller's retry policy can match on them.
func (c *Client) messages(ctx context.Context, rid string, body map[string]any, beta bool) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	raw, status, err := vision.SendJSON(ctx, c.http, endpoint, body, c.headers(beta), c.logger)
	if err != nil {
		return "", fmt.Errorf("%w: messages call (status %d): %v", common.ErrProvider, status, err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode messages response: %v", common.ErrProvider, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty response content", common.ErrMalformedResponse)
	}
	if resp.StopReason == "max_tokens" {
		c.logger.Warn("anthropic.messages.truncated", "req_id", rid, "stop_reason", resp.StopReason)
	}
	return b.String(), nil
}

func buildExtractionPrompt(rawText string, s *schema.Schema) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from this document text. ")
	b.WriteString("Return ONLY a JSON object whose structure mirrors the field paths below: ")
	b.WriteString("a dotted path nests objects, and an array-of-object field is a JSON array ")
	b.WriteString("of row objects keyed by the column's last path segment. ")
	b.WriteString("Use null for fields not present in the text.\n\nFIELDS:\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Path, f.Type)
	}
	b.WriteString("\nDOCUMENT TEXT:\n")
	b.WriteString(rawText)
	return b.String()
}
