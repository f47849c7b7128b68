package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gestion/internal/amqp"
	"gestion/internal/export"
	"gestion/internal/ledger"
	"gestion/internal/records"
)

// ReportWorker keeps the exported files of each month current. It rebuilds
// the reports of every month named in a record change event.
type ReportWorker struct {
	store     records.Lister
	dir       string
	renderers []export.Renderer
	now       func() time.Time
}

func NewReportWorker(store records.Lister, dir string, renderers ...export.Renderer) *ReportWorker {
	return &ReportWorker{
		store:     store,
		dir:       dir,
		renderers: renderers,
		now:       time.Now,
	}
}

// HandleRecordChanged processes a single record change event from AMQP.
func (w *ReportWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		"kind", msg.Kind,
		"id", msg.ID,
		"op", msg.Op,
		"months", len(msg.Months))

	if len(msg.Months) == 0 {
		return nil
	}

	l, err := w.load(ctx)
	if err != nil {
		return err
	}
	for _, m := range msg.Months {
		if !m.Valid() {
			continue
		}
		if _, err := w.Regenerate(ctx, l, m.Month, m.Year); err != nil {
			return err
		}
	}
	return nil
}

// Regenerate renders every format of one month concurrently and returns the
// written paths in renderer order.
func (w *ReportWorker) Regenerate(ctx context.Context, l *ledger.Ledger, month, year int) ([]string, error) {
	report, err := export.NewReport(l, month, year)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(w.renderers))
	g, ctx := errgroup.WithContext(ctx)
	for i, rd := range w.renderers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := export.WriteFile(w.dir, rd, report)
			if err != nil {
				return fmt.Errorf("export %s: %w", rd.Filename(report), err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Reports regenerated",
		"month", export.MonthName(month),
		"year", year,
		"files", len(paths),
		"balance", report.Summary.Balance.String())
	return paths, nil
}

// StartupRegenerate rebuilds the current month so files exist after the
// worker was down.
func (w *ReportWorker) StartupRegenerate(ctx context.Context) error {
	l, err := w.load(ctx)
	if err != nil {
		return err
	}
	now := w.now()
	_, err = w.Regenerate(ctx, l, int(now.Month())-1, now.Year())
	return err
}

func (w *ReportWorker) load(ctx context.Context) (*ledger.Ledger, error) {
	exps, provs, err := records.LoadAll(ctx, w.store)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return ledger.New(exps, provs), nil
}
