// Command gestion-export writes the monthly reports of the configured store
// to disk and moves record snapshots in and out of it.
//
//	gestion-export -year 2025 -month 2 -format all
//	gestion-export -snapshot-out backup.json
//	gestion-export -snapshot-in backup.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gestion/internal/cli"
	"gestion/internal/export"
	"gestion/internal/ledger"
	applog "gestion/internal/log"
	"gestion/internal/records"
	"gestion/internal/worker"
)

func main() {
	now := time.Now()
	var (
		year        = flag.Int("year", now.Year(), "report year")
		month       = flag.Int("month", int(now.Month()), "report month, 1-12")
		format      = flag.String("format", "all", "pdf, xlsx or all")
		dir         = flag.String("dir", "", "output directory (default EXPORT_DIR)")
		snapshotOut = flag.String("snapshot-out", "", "write every record to this JSON file and exit")
		snapshotIn  = flag.String("snapshot-in", "", "import records from this JSON file and exit")
	)
	flag.Parse()

	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentExport)
	if *dir == "" {
		*dir = cfg.ExportDir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	var err error
	switch {
	case *snapshotOut != "":
		err = writeSnapshot(ctx, res.Store, *snapshotOut)
	case *snapshotIn != "":
		var n int
		n, err = readSnapshot(ctx, res.Store, *snapshotIn)
		logger.Info("Snapshot imported", "path", *snapshotIn, "records", n)
	default:
		err = writeReports(ctx, logger, res.Store, *dir, *format, *month-1, *year)
	}
	if err != nil {
		logger.Error("gestion-export failed", "error", err)
		os.Exit(1)
	}
}

func renderersFor(format string) ([]export.Renderer, error) {
	switch format {
	case "pdf":
		return []export.Renderer{export.NewPDF(nil)}, nil
	case "xlsx":
		return []export.Renderer{export.NewXLSX()}, nil
	case "all", "":
		return []export.Renderer{export.NewPDF(nil), export.NewXLSX()}, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func writeReports(ctx context.Context, logger *applog.Logger, store records.Lister, dir, format string, month, year int) error {
	if month < 0 || month >= ledger.MonthsPerYear {
		return fmt.Errorf("month must be between 1 and 12, got %d", month+1)
	}
	rds, err := renderersFor(format)
	if err != nil {
		return err
	}
	exps, provs, err := records.LoadAll(ctx, store)
	if err != nil {
		return err
	}

	paths, err := worker.NewReportWorker(store, dir, rds...).Regenerate(ctx, ledger.New(exps, provs), month, year)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("Report written", applog.FieldMonth, month, applog.FieldYear, year, "path", p)
	}
	return nil
}

func writeSnapshot(ctx context.Context, store records.Lister, path string) error {
	snap, err := records.Export(ctx, store)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := records.WriteSnapshot(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readSnapshot(ctx context.Context, store records.Upserter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	snap, err := records.ReadSnapshot(f)
	if err != nil {
		return 0, err
	}
	return records.Import(ctx, store, snap)
}
