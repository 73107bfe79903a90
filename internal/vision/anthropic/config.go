// Package anthropic implements the vision.Model and vision.AssetStore
// contracts against the Anthropic Messages and Files APIs.
package anthropic

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	apiVersion = "2023-06-01"
	// filesBeta enables file-reference image blocks, which lets every
	// validation round reuse the page uploaded before round 1.
	filesBeta = "files-api-2025-04-14"
)

// Config for the Anthropic client.
type Config struct {
	APIKey    string        // falls back to env ANTHROPIC_API_KEY
	BaseURL   string        // default https://api.anthropic.com
	Model     string        // e.g. "claude-3-5-sonnet-20241022"
	MaxTokens int           // response budget per call
	Timeout   time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 16000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) headers(beta bool) map[string]string {
	h := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}
	if beta {
		h["anthropic-beta"] = filesBeta
	}
	return h
}
