// Package main provides the sheetetl CLI: scan a workbook, ingest it into a
// database, and inspect what was loaded.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sheetetl/internal/config"
	"sheetetl/internal/ingest"
	"sheetetl/internal/metrics"
	"sheetetl/internal/metrics/datadog"
	"sheetetl/internal/storage"
	"sheetetl/internal/workbook"

	// register all storage backends with the factory.
	_ "sheetetl/internal/storage/all"
)

var (
	scanRows       int
	scanInitConfig string

	ingestConfig   string
	ingestBackend  string
	ingestOut      string
	ingestDSN      string
	ingestOnExists string
	metricsBackend string

	catalogBackend string
	catalogOut     string
	catalogDSN     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sheetetl",
		Short: "Load spreadsheet workbooks into SQL databases",
		Long: `sheetetl scans Excel workbooks, cleans each sheet according to a JSON
config (header rows, excluded rows/columns), infers column types, and
loads the result into SQLite, PostgreSQL, or SQL Server.`,
		SilenceUsage: true,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [workbook.xlsx]",
		Short: "Preview a workbook's sheets and suggest a config",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().IntVar(&scanRows, "rows", 15, "Preview rows per sheet")
	scanCmd.Flags().StringVar(&scanInitConfig, "init-config", "", "Write a suggested config JSON to this path")

	ingestCmd := &cobra.Command{
		Use:   "ingest [workbook.xlsx]",
		Short: "Clean, type, and load every configured sheet",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	ingestCmd.Flags().StringVarP(&ingestConfig, "config", "c", "", "Sheet config JSON path (required)")
	ingestCmd.Flags().StringVar(&ingestBackend, "backend", "sqlite", "Storage backend: "+strings.Join(storage.Kinds(), ", "))
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", ".", "Output directory for SQLite database files")
	ingestCmd.Flags().StringVar(&ingestDSN, "dsn", "", "Connection string for server backends")
	ingestCmd.Flags().StringVar(&ingestOnExists, "on-exists", "replace", "Existing-table policy: replace, fail")
	ingestCmd.Flags().StringVar(&metricsBackend, "metrics-backend", "", "Metrics backend: datadog, none")
	_ = ingestCmd.MarkFlagRequired("config")

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "List loaded tables and their columns",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}
	catalogCmd.Flags().StringVar(&catalogBackend, "backend", "sqlite", "Storage backend: "+strings.Join(storage.Kinds(), ", "))
	catalogCmd.Flags().StringVarP(&catalogOut, "out", "o", ".", "Directory of SQLite database files")
	catalogCmd.Flags().StringVar(&catalogDSN, "dsn", "", "Connection string for server backends")

	rootCmd.AddCommand(scanCmd, ingestCmd, catalogCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	path := args[0]

	wb, err := workbook.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	previews, err := workbook.Scan(wb, workbook.ScanOptions{PreviewRows: scanRows})
	if err != nil {
		return err
	}

	for _, p := range previews {
		fmt.Printf("sheet %q: %d rows x %d columns", p.Name, p.RowCount, p.ColumnCount)
		if p.SuggestedHeaderRow >= 0 {
			fmt.Printf(", header row %d", p.SuggestedHeaderRow)
		}
		fmt.Println()
		printGrid(p.Rows)
		fmt.Println()
	}

	if scanInitConfig != "" {
		model := workbook.SuggestConfig(path, previews)
		if err := model.Save(scanInitConfig); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("wrote suggested config to %s\n", scanInitConfig)
	}
	return nil
}

func printGrid(g workbook.Grid) {
	for r := 0; r < g.Rows(); r++ {
		cells := make([]string, 0, g.Cols())
		for c := 0; c < g.Cols(); c++ {
			cells = append(cells, g.Cell(r, c).Value)
		}
		fmt.Printf("  %3d | %s\n", r, strings.Join(cells, " | "))
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := context.Background()

	model, err := config.Load(ingestConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var policy ingest.OverwritePolicy
	switch ingestOnExists {
	case "replace":
		policy = ingest.OverwriteReplace
	case "fail":
		policy = ingest.OverwriteFail
	default:
		return fmt.Errorf("invalid --on-exists %q (must be replace or fail)", ingestOnExists)
	}

	setupMetrics()

	wb, err := workbook.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	if ingestBackend == "sqlite" {
		if err := os.MkdirAll(ingestOut, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	} else if ingestDSN == "" {
		return fmt.Errorf("--dsn is required for backend %q", ingestBackend)
	}

	orch := ingest.New(ingestBackend, ingestOut, ingestDSN)
	orch.Overwrite = policy

	report, err := orch.Ingest(ctx, wb, model)
	if err != nil {
		return err
	}

	for _, res := range report.Results {
		switch res.Status {
		case ingest.StatusSkipped:
			fmt.Printf("skip  %q\n", res.Sheet)
		case ingest.StatusOK:
			fmt.Printf("ok    %q -> %s (%d rows, %s)\n", res.Sheet, res.Table, res.RowsWritten, res.Elapsed.Round(time.Millisecond))
		case ingest.StatusFailed:
			fmt.Printf("fail  %q at %s: %v\n", res.Sheet, res.Stage, res.Err)
		}
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d sheets failed", n, len(report.Results))
	}
	return nil
}

// setupMetrics wires the optional metrics backend: flag, then env, then off.
func setupMetrics() {
	name := metricsBackend
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	switch name {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "sheetetl",
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; metrics disabled", err)
			return
		}
		metrics.SetBackend(b)
		cobra.OnFinalize(func() {
			if err := metrics.Close(); err != nil {
				log.Printf("metrics: close error: %v", err)
			}
		})

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if catalogBackend == "sqlite" {
		paths, err := filepath.Glob(filepath.Join(catalogOut, "*.db"))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Printf("no database files under %s\n", catalogOut)
			return nil
		}
		for _, p := range paths {
			if err := describeRepo(ctx, storage.Config{Kind: "sqlite", DSN: p}, p); err != nil {
				return err
			}
		}
		return nil
	}

	if catalogDSN == "" {
		return fmt.Errorf("--dsn is required for backend %q", catalogBackend)
	}
	return describeRepo(ctx, storage.Config{Kind: catalogBackend, DSN: catalogDSN}, catalogBackend)
}

func describeRepo(ctx context.Context, cfg storage.Config, label string) error {
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", label, err)
	}
	defer repo.Close()

	tables, err := repo.Tables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		cols, err := repo.Describe(ctx, table)
		if err != nil {
			return err
		}
		fmt.Printf("%s: table %q\n", label, table)
		for _, c := range cols {
			null := "not null"
			if c.Nullable {
				null = "nullable"
			}
			fmt.Printf("  %-30s %-10s %s\n", c.Name, c.Type, null)
		}
	}
	return nil
}
