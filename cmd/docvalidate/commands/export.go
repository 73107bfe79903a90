package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/manikumarthati/extractionWithValidation/internal/common"
	"github.com/manikumarthati/extractionWithValidation/internal/export"
	"github.com/manikumarthati/extractionWithValidation/internal/store"
)

var (
	exportDBPath  string
	exportOutPath string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit store's validation sessions as XLSX",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDBPath, "db", "", "audit database path (default: AUDIT_DB_PATH)")
	exportCmd.Flags().StringVarP(&exportOutPath, "out", "o", "sessions.xlsx", "output XLSX path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.Default()

	dbPath := exportDBPath
	if dbPath == "" {
		dbPath = common.LoadConfig().Audit.DBPath
	}

	st, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	xlsx, err := export.NewService(logger).ExportSessionsXLSX(ctx, st)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOutPath, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutPath, err)
	}
	logger.Info("cli.export.ok", "db", dbPath, "out", exportOutPath)
	return nil
}
