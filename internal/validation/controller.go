// Package validation runs the iterative validate-and-correct loop for one
// document page: each round sends the current record and the page image
// reference to the vision model, merges the parsed corrections with the
// deterministic heuristics, and applies the survivors. Progress from
// completed rounds is never discarded, whatever ends the loop.
package validation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/manikumarthati/extractionWithValidation/constants"
	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/correction"
	"github.com/manikumarthati/extractionWithValidation/internal/heuristics"
	"github.com/manikumarthati/extractionWithValidation/internal/record"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
	"github.com/manikumarthati/extractionWithValidation/internal/vision"
)

// providerRetries is the number of retries after the first failed vision
// call. Exhausting them terminates the loop as PROVIDER_UNAVAILABLE.
const providerRetries = 2

// Config tunes the loop. Zero values take the documented defaults.
type Config struct {
	MaxRounds      int     // default 10, counting from 1
	TargetAccuracy float32 // default 1.0
	// RetryBackoff is the base delay before a provider retry; the second
	// retry doubles it.
	RetryBackoff time.Duration
	Apply        correction.ApplyConfig
}

func (c *Config) setDefaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 10
	}
	if c.TargetAccuracy <= 0 {
		c.TargetAccuracy = 1.0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// Round is the audit entry for one completed round.
type Round struct {
	Index            int                    `json:"round"`
	AccuracyEstimate float32                `json:"accuracy_estimate"`
	AppliedOps       []correction.Op        `json:"applied_ops,omitempty"`
	SkippedOps       []correction.Op        `json:"skipped_ops,omitempty"`
	ShiftPattern     constants.ShiftPattern `json:"shift_pattern"`
	ModelLatency     time.Duration          `json:"model_latency_ns"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// Result is the loop outcome: the best record reached, the full per-round
// audit trail, and why the loop stopped.
type Result struct {
	FinalRecord   record.Record
	Rounds        []Round
	Reason        constants.TerminationReason
	FinalAccuracy float32
}

// Controller drives the loop against a vision model.
type Controller struct {
	model      vision.Model
	parser     *correction.Parser
	applicator *correction.Applicator
	cfg        Config
	logger     *slog.Logger
}

func NewController(model vision.Model, cfg Config, logger *slog.Logger) *Controller {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		model:      model,
		parser:     correction.NewParser(logger),
		applicator: correction.NewApplicator(cfg.Apply, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes rounds 1..MaxRounds for one page. assetRef identifies the
// already-uploaded page image; rawText is the page's extracted text, used by
// the row-recovery heuristic. Degraded outcomes (provider down, unparseable
// responses, cancellation) are reported through Result.Reason, not an error:
// the caller always receives the progress made so far.
func (c *Controller) Run(ctx context.Context, assetRef string, rec record.Record, s *schema.Schema, rawText string) (Result, error) {
	res := Result{FinalRecord: rec.Clone()}
	var history []vision.HistoryEntry

	for i := 1; i <= c.cfg.MaxRounds; i++ {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("validation.round.cancelled", "round", i)
			res.Reason = constants.ReasonCancelled
			return res, nil
		}

		report, latency, reason := c.callAndParse(ctx, vision.Request{
			AssetRef:   assetRef,
			Record:     res.FinalRecord,
			Schema:     s,
			RoundIndex: i,
			History:    history,
		})
		if reason != "" {
			res.Reason = reason
			return res, nil
		}

		shiftReports, shiftOps := heuristics.AnalyzeShifts(res.FinalRecord, s, c.logger)
		assocOps := heuristics.AnalyzeAssociations(res.FinalRecord, s, c.logger)
		var rowOps []correction.Op
		for _, cand := range heuristics.RecoverRows(res.FinalRecord, s, rawText, c.logger) {
			rowOps = append(rowOps, cand.Op())
		}

		merged := make([]correction.Op, 0, len(report.Ops)+len(shiftOps)+len(assocOps)+len(rowOps))
		merged = append(merged, report.Ops...)
		merged = append(merged, shiftOps...)
		merged = append(merged, assocOps...)
		merged = append(merged, rowOps...)

		applied := c.applicator.Apply(res.FinalRecord, merged)
		res.FinalRecord = applied.NewRecord
		res.FinalAccuracy = report.AccuracyEstimate

		round := Round{
			Index:            i,
			AccuracyEstimate: report.AccuracyEstimate,
			AppliedOps:       applied.AppliedOps,
			SkippedOps:       applied.SkippedOps,
			ShiftPattern:     roundShiftPattern(report, shiftReports),
			ModelLatency:     latency,
			Warnings:         report.Warnings,
		}
		res.Rounds = append(res.Rounds, round)
		if len(applied.AppliedOps) > 0 {
			history = append(history, vision.HistoryEntry{Round: i, Ops: applied.AppliedOps})
		}

		c.logger.Info("validation.round.done",
			"round", i,
			"accuracy", report.AccuracyEstimate,
			"applied", len(applied.AppliedOps),
			"skipped", len(applied.SkippedOps),
			"shift_pattern", string(round.ShiftPattern),
			"model_latency_ms", latency.Milliseconds(),
		)

		// Termination checks, in priority order.
		switch {
		case report.AccuracyEstimate >= c.cfg.TargetAccuracy:
			res.Reason = constants.ReasonConverged
			return res, nil
		case len(merged) == 0:
			res.Reason = constants.ReasonStable
			return res, nil
		case i == c.cfg.MaxRounds:
			res.Reason = constants.ReasonRoundsExhausted
			return res, nil
		}
	}
	// Unreachable: the i == MaxRounds arm above always fires first.
	res.Reason = constants.ReasonRoundsExhausted
	return res, nil
}

// callAndParse performs one round's model call with the two-stage recovery
// policy: provider failures retry with backoff, a malformed response (whether
// it failed to parse or arrived with no content at all) gets exactly one
// strict re-prompt. A non-empty reason terminates the loop; cancellation
// always reports as CANCELLED, never as a provider outage.
func (c *Controller) callAndParse(ctx context.Context, req vision.Request) (correction.Report, time.Duration, constants.TerminationReason) {
	report, latency, err := c.attempt(ctx, req)
	if err == nil {
		return report, latency, ""
	}
	if ctx.Err() != nil {
		c.logger.Warn("validation.round.cancelled", "round", req.RoundIndex, "error", err)
		return correction.Report{}, latency, constants.ReasonCancelled
	}
	if !errors.Is(err, common.ErrMalformedResponse) {
		return correction.Report{}, latency, constants.ReasonProviderUnavailable
	}

	c.logger.Warn("validation.parse.retry_strict", "round", req.RoundIndex, "error", err)
	req.Strict = true
	report, strictLatency, err := c.attempt(ctx, req)
	latency += strictLatency
	switch {
	case err == nil:
		return report, latency, ""
	case ctx.Err() != nil:
		c.logger.Warn("validation.round.cancelled", "round", req.RoundIndex, "error", err)
		return correction.Report{}, latency, constants.ReasonCancelled
	case errors.Is(err, common.ErrMalformedResponse):
		c.logger.Error("validation.parse.failed_after_strict", "round", req.RoundIndex, "error", err)
		return correction.Report{}, latency, constants.ReasonParseFailure
	default:
		return correction.Report{}, latency, constants.ReasonProviderUnavailable
	}
}

// attempt is one call-and-parse pass; the error distinguishes malformed
// deliveries (ErrMalformedResponse) from provider failures.
func (c *Controller) attempt(ctx context.Context, req vision.Request) (correction.Report, time.Duration, error) {
	raw, latency, err := c.callWithRetry(ctx, req)
	if err != nil {
		return correction.Report{}, latency, err
	}
	report, err := c.parser.Parse(raw, req.Schema)
	return report, latency, err
}

// callWithRetry retries transient provider failures with doubling backoff.
// Malformed-but-delivered responses are not retried here; that is the strict
// re-prompt's job.
func (c *Controller) callWithRetry(ctx context.Context, req vision.Request) (string, time.Duration, error) {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= providerRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBackoff << (attempt - 1)
			c.logger.Warn("validation.provider.retry",
				"round", req.RoundIndex, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", time.Since(start), ctx.Err()
			}
		}
		raw, err := c.model.ValidateAndCorrect(ctx, req)
		if err == nil {
			return raw, time.Since(start), nil
		}
		lastErr = err
		if !errors.Is(err, common.ErrProvider) {
			break
		}
	}
	c.logger.Error("validation.provider.unavailable", "round", req.RoundIndex, "error", lastErr)
	return "", time.Since(start), lastErr
}

// roundShiftPattern prefers the deterministic heuristic verdict; the model's
// hint fills in only when the heuristics saw nothing.
func roundShiftPattern(report correction.Report, shiftReports []heuristics.ShiftReport) constants.ShiftPattern {
	if p := heuristics.WorstPattern(shiftReports); p != constants.ShiftNone {
		return p
	}
	return report.ShiftPatternHint
}
