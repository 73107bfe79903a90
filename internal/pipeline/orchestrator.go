// Package pipeline coordinates the full document flow: text extraction,
// round-zero field extraction, page rendering and upload, the validation
// loop, and the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/extract"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
	"github.com/manikumarthati/extractionWithValidation/internal/store"
	"github.com/manikumarthati/extractionWithValidation/internal/validation"
	"github.com/manikumarthati/extractionWithValidation/internal/vision"
)

// Engine bundles the per-page document operations the orchestrator needs.
// extract.FitzEngine satisfies it.
type Engine interface {
	extract.TextExtractor
	extract.Rasterizer
	PageCount(ctx context.Context, path string) (int, error)
}

// PageReport is the outcome for one page. Err is set only for page-fatal
// failures (no text to validate against); degraded loop outcomes land in
// TerminationReason instead, with the best record reached.
type PageReport struct {
	Page               int
	SessionID          string
	ExtractedData      record.Record
	AccuracyEstimate   float32
	RoundsCompleted    int
	TerminationReason  constants.TerminationReason
	CorrectionsApplied int
	AuditTrail         []validation.Round
	Err                error
}

// Report is the whole-document outcome, one entry per page in page order.
type Report struct {
	DocumentPath string
	Pages        []PageReport
}

// Orchestrator wires the stages together. Pages are independent and run
// concurrently; a failed page never blocks the others.
type Orchestrator struct {
	engine    Engine
	fields    extract.FieldExtractor
	assets    vision.AssetStore
	loop      *validation.Controller
	audit     *store.AuditStore // optional
	renderDPI int
	logger    *slog.Logger
}

func NewOrchestrator(engine Engine, fields extract.FieldExtractor, assets vision.AssetStore,
	loop *validation.Controller, audit *store.AuditStore, renderDPI int, logger *slog.Logger) *Orchestrator {
	if renderDPI <= 0 {
		renderDPI = 600
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		engine:    engine,
		fields:    fields,
		assets:    assets,
		loop:      loop,
		audit:     audit,
		renderDPI: renderDPI,
		logger:    logger,
	}
}

// ProcessDocument runs every page of the document through the pipeline.
// The returned error covers document-level failures only (unreadable file);
// per-page failures are reported in their PageReport.
func (o *Orchestrator) ProcessDocument(ctx context.Context, path string, s *schema.Schema) (Report, error) {
	pages, err := o.engine.PageCount(ctx, path)
	if err != nil {
		return Report{}, err
	}
	if pages == 0 {
		return Report{}, fmt.Errorf("document %s has no pages", path)
	}

	o.logger.Info("pipeline.document.start", "path", path, "pages", pages)

	report := Report{DocumentPath: path, Pages: make([]PageReport, pages)}
	var wg sync.WaitGroup
	for page := 0; page < pages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			report.Pages[page] = o.processPage(ctx, path, page, s)
		}(page)
	}
	wg.Wait()

	o.logger.Info("pipeline.document.done", "path", path, "pages", pages)
	return report, nil
}

func (o *Orchestrator) processPage(ctx context.Context, path string, page int, s *schema.Schema) PageReport {
	pr := PageReport{Page: page, SessionID: uuid.New().String()}
	ctx = common.WithSessionID(ctx, pr.SessionID)
	started := time.Now()

	text, err := o.engine.ExtractText(ctx, path, page)
	if err != nil {
		o.logger.Error("pipeline.page.extract_failed", "path", path, "page", page, "error", err)
		pr.Err = err
		return pr
	}

	initial, _, err := o.fields.ExtractFields(ctx, text.Text, s)
	if err != nil {
		o.logger.Error("pipeline.page.fields_failed", "path", path, "page", page, "error", err)
		pr.Err = err
		return pr
	}

	img, err := o.engine.RenderPage(ctx, path, page, o.renderDPI)
	if err != nil {
		o.logger.Error("pipeline.page.render_failed", "path", path, "page", page, "error", err)
		pr.Err = err
		return pr
	}

	assetRef, err := o.assets.Upload(ctx, img.PNG, fmt.Sprintf("page-%d.png", page))
	if err != nil {
		// Image upload failing before round 1 degrades like a provider
		// outage: the round-zero extraction still comes back.
		o.logger.Error("pipeline.page.upload_failed", "path", path, "page", page, "error", err)
		pr.ExtractedData = initial
		pr.TerminationReason = constants.ReasonProviderUnavailable
		return pr
	}
	defer func() {
		// Release uses its own context so cancellation cannot leak assets.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.assets.Release(relCtx, assetRef); err != nil {
			o.logger.Warn("pipeline.page.release_failed", "asset_ref", assetRef, "error", err)
		}
	}()

	res, err := o.loop.Run(ctx, assetRef, initial, s, text.Text)
	if err != nil {
		pr.Err = err
		return pr
	}

	pr.ExtractedData = res.FinalRecord
	pr.AccuracyEstimate = res.FinalAccuracy
	pr.RoundsCompleted = len(res.Rounds)
	pr.TerminationReason = res.Reason
	pr.AuditTrail = res.Rounds
	for _, r := range res.Rounds {
		pr.CorrectionsApplied += len(r.AppliedOps)
	}

	o.logger.Info("pipeline.page.done",
		"path", path,
		"page", page,
		"session_id", pr.SessionID,
		"rounds", pr.RoundsCompleted,
		"reason", string(pr.TerminationReason),
		"accuracy", pr.AccuracyEstimate,
		"corrections", pr.CorrectionsApplied,
	)

	if o.audit != nil {
		sess := store.Session{
			ID:              pr.SessionID,
			DocumentPath:    path,
			Page:            page,
			StartedAt:       started,
			FinishedAt:      time.Now(),
			RoundsCompleted: pr.RoundsCompleted,
			Reason:          pr.TerminationReason,
			FinalAccuracy:   pr.AccuracyEstimate,
			FinalRecord:     pr.ExtractedData,
		}
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.audit.SaveSession(saveCtx, sess, res.Rounds); err != nil {
			o.logger.Error("pipeline.page.audit_failed", "session_id", pr.SessionID, "error", err)
		}
	}
	return pr
}

// Failed reports whether any page ended with a page-fatal error.
func (r Report) Failed() bool {
	for _, p := range r.Pages {
		if p.Err != nil {
			return true
		}
	}
	return false
}

// PageErrors joins the page-fatal errors in page order, or nil.
func (r Report) PageErrors() error {
	var errs []error
	for _, p := range r.Pages {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", p.Page, p.Err))
		}
	}
	return errors.Join(errs...)
}
