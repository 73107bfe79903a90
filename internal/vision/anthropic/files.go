package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
)

// Upload pushes one rendered page image to the Files API and returns its
// file id. The loop uploads once per page and reuses the id every round.
func (c *Client) Upload(ctx context.Context, image []byte, name string) (string, error) {
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("write multipart payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range c.headers(true) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload page image: %v", common.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: upload status %d: %s", common.ErrProvider, resp.StatusCode, string(raw))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		return "", fmt.Errorf("%w: decode upload response: %v", common.ErrProvider, err)
	}

	c.logger.Info("anthropic.files.uploaded",
		"file_id", out.ID,
		"name", name,
		"bytes", len(image),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.ID, nil
}

// Release deletes an uploaded page image. Called on every loop exit path;
// failures are logged by callers, never fatal.
func (c *Client) Release(ctx context.Context, ref string) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/files/" + ref
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	for k, v := range c.headers(true) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete file %s: %v", common.ErrProvider, ref, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete file %s: status %d", common.ErrProvider, ref, resp.StatusCode)
	}

	c.logger.Info("anthropic.files.released", "file_id", ref)
	return nil
}
