package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
)

// FitzEngine implements TextExtractor and Rasterizer on top of MuPDF.
// Each call opens the document fresh; fitz documents are not safe for
// concurrent use, and per-page workers would otherwise share one handle.
type FitzEngine struct {
	logger *slog.Logger
}

func NewFitzEngine(logger *slog.Logger) *FitzEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzEngine{logger: logger}
}

// PageCount reports how many pages the document has.
func (e *FitzEngine) PageCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", common.ErrExtraction, path, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// ExtractText pulls the embedded text layer of one page. An empty text layer
// (scanned image with no OCR) is reported as an extraction failure: the loop
// has nothing to validate against.
func (e *FitzEngine) ExtractText(ctx context.Context, path string, page int) (TextResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return TextResult{}, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return TextResult{}, fmt.Errorf("%w: open %s: %v", common.ErrExtraction, path, err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return TextResult{}, fmt.Errorf("%w: page %d out of range (document has %d)", common.ErrExtraction, page, doc.NumPage())
	}

	text, err := doc.Text(page)
	if err != nil {
		return TextResult{}, fmt.Errorf("%w: read text of page %d: %v", common.ErrExtraction, page, err)
	}

	res := TextResult{
		Text:     text,
		Page:     page,
		Pages:    doc.NumPage(),
		Method:   "pdf-text",
		Duration: time.Since(start),
	}
	if strings.TrimSpace(text) == "" {
		return res, fmt.Errorf("%w: page %d has no text layer", common.ErrExtraction, page)
	}

	e.logger.Info("extract.text.ok",
		"path", path, "page", page, "chars", len(text),
		"elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

// RenderPage rasterizes one page to PNG at the requested DPI.
func (e *FitzEngine) RenderPage(ctx context.Context, path string, page, dpi int) (PageImage, error) {
	if err := ctx.Err(); err != nil {
		return PageImage{}, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return PageImage{}, fmt.Errorf("%w: open %s: %v", common.ErrExtraction, path, err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return PageImage{}, fmt.Errorf("%w: page %d out of range (document has %d)", common.ErrExtraction, page, doc.NumPage())
	}

	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return PageImage{}, fmt.Errorf("%w: render page %d at %d dpi: %v", common.ErrExtraction, page, dpi, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return PageImage{}, fmt.Errorf("%w: encode page %d: %v", common.ErrExtraction, page, err)
	}

	bounds := img.Bounds()
	e.logger.Info("extract.render.ok",
		"path", path, "page", page, "dpi", dpi,
		"width", bounds.Dx(), "height", bounds.Dy(), "bytes", buf.Len())
	return PageImage{
		PNG:    buf.Bytes(),
		Page:   page,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		DPI:    dpi,
	}, nil
}
