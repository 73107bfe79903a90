package extract

import (
	"context"
	"time"

	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// TextExtractor is stage 1: document page -> raw text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string, page int) (TextResult, error)
}

type TextResult struct {
	Text     string
	Page     int
	Pages    int
	Method   string // "pdf-text"
	Duration time.Duration
	Warnings []string
}

// Rasterizer renders a page to an image for the vision rounds. DPI matters:
// table column boundaries blur below 300.
type Rasterizer interface {
	RenderPage(ctx context.Context, path string, page, dpi int) (PageImage, error)
}

type PageImage struct {
	PNG    []byte
	Page   int
	Width  int
	Height int
	DPI    int
}

// FieldExtractor is stage 2: raw text -> the round-zero record the
// validation loop starts from. rawJSON is the model payload, kept for audit.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, rawText string, s *schema.Schema) (record.Record, []byte, error)
}
