package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/export"
	"github.com/manikumarthati/extractionWithValidation/internal/extract"
	"github.com/manikumarthati/extractionWithValidation/internal/pipeline"
	"github.com/manikumarthati/extractionWithValidation/internal/schema"
	"github.com/manikumarthati/extractionWithValidation/internal/store"
	"github.com/manikumarthati/extractionWithValidation/internal/validation"
	"github.com/manikumarthati/extractionWithValidation/internal/vision/anthropic"
)

var (
	runFilePath   string
	runSchemaPath string
	runOutPath    string
	runNoAudit    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract and validate a document against its schema",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFilePath, "file", "f", "", "path to the PDF document (required)")
	runCmd.Flags().StringVarP(&runSchemaPath, "schema", "s", "", "path to the field schema, YAML or JSON (required)")
	runCmd.Flags().StringVarP(&runOutPath, "out", "o", "", "write an XLSX report to this path")
	runCmd.Flags().BoolVar(&runNoAudit, "no-audit", false, "skip persisting the audit trail")
	_ = runCmd.MarkFlagRequired("file")
	_ = runCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	raw, err := os.ReadFile(runSchemaPath)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", runSchemaPath, err)
	}
	s, err := schema.Load(raw)
	if err != nil {
		return err
	}

	client := anthropic.NewClient(anthropic.Config{
		APIKey:    cfg.Vision.APIKey,
		BaseURL:   cfg.Vision.BaseURL,
		Model:     cfg.Vision.Model,
		MaxTokens: cfg.Vision.MaxTokens,
		Timeout:   cfg.Vision.Timeout,
	}, logger)

	loop := validation.NewController(client, validation.Config{
		MaxRounds:      cfg.Validation.MaxRounds,
		TargetAccuracy: cfg.Validation.TargetAccuracy,
	}, logger)

	var audit *store.AuditStore
	if !runNoAudit {
		audit, err = store.Open(ctx, cfg.Audit.DBPath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = audit.Close() }()
	}

	engine := extract.NewFitzEngine(logger)
	orch := pipeline.NewOrchestrator(engine, client, client, loop, audit, cfg.Render.DPI, logger)

	report, err := orch.ProcessDocument(ctx, runFilePath, s)
	if err != nil {
		return err
	}

	if err := printReport(report); err != nil {
		return err
	}

	if runOutPath != "" {
		xlsx, err := export.NewService(logger).ExportReportXLSX(report, s)
		if err != nil {
			return err
		}
		if err := os.WriteFile(runOutPath, xlsx, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", runOutPath, err)
		}
		logger.Info("cli.run.report_written", "path", runOutPath)
	}

	if report.Failed() {
		return report.PageErrors()
	}
	return nil
}

// printReport writes the machine-readable outcome to stdout; logs go to
// stderr, so the two streams stay separable.
func printReport(report pipeline.Report) error {
	type pageOut struct {
		Page        int     `json:"page"`
		SessionID   string  `json:"session_id,omitempty"`
		Data        any     `json:"extracted_data,omitempty"`
		Accuracy    float32 `json:"final_accuracy_estimate"`
		Rounds      int     `json:"rounds_completed"`
		Reason      string  `json:"terminated_reason,omitempty"`
		Corrections int     `json:"corrections_applied"`
		Error       string  `json:"error,omitempty"`
	}
	out := struct {
		Document string    `json:"document"`
		Pages    []pageOut `json:"pages"`
	}{Document: report.DocumentPath}

	for _, p := range report.Pages {
		po := pageOut{
			Page:        p.Page + 1,
			SessionID:   p.SessionID,
			Data:        p.ExtractedData,
			Accuracy:    p.AccuracyEstimate,
			Rounds:      p.RoundsCompleted,
			Reason:      string(p.TerminationReason),
			Corrections: p.CorrectionsApplied,
		}
		if p.Err != nil {
			po.Error = p.Err.Error()
			po.Data = nil
		}
		out.Pages = append(out.Pages, po)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
