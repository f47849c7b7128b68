package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestion/internal/amqp"
	"gestion/internal/core"
	"gestion/internal/export"
	"gestion/internal/records/memory"
)

type failingRenderer struct{ export.Renderer }

func (failingRenderer) Render(io.Writer, export.Report) error { return errors.New("disk full") }

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Upsert(ctx, core.ProvisionRecord(core.Provision{ID: "p1", Date: core.NewDate(2025, 1, 1), Amount: core.NewMoney(2000)})))
	require.NoError(t, s.Upsert(ctx, core.ExpenseRecord(core.Expense{ID: "e1", Date: core.NewDate(2025, 2, 10), ProductName: "Essence", Price: core.NewMoney(300)})))
	return s
}

func newWorker(t *testing.T, dir string) *ReportWorker {
	w := NewReportWorker(seeded(t), dir, export.NewPDF(nil), export.NewXLSX())
	w.now = func() time.Time { return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestHandleRecordChangedWritesBothFormats(t *testing.T) {
	dir := t.TempDir()
	w := newWorker(t, dir)

	msg := amqp.NewRecordChangedMessage(core.KindExpense, "e1", amqp.OpUpsert, []amqp.MonthRef{{Month: 1, Year: 2025}})
	require.NoError(t, w.HandleRecordChanged(context.Background(), msg))

	assert.FileExists(t, filepath.Join(dir, "Dépenses_Détaillées_Février.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Finance_Février_2025.xlsx"))
}

func TestHandleRecordChangedRegeneratesFutureMonths(t *testing.T) {
	dir := t.TempDir()
	w := newWorker(t, dir)

	msg := amqp.NewRecordChangedMessage(core.KindExpense, "e9", amqp.OpUpsert, []amqp.MonthRef{{Month: 6, Year: 2025}})
	require.NoError(t, w.HandleRecordChanged(context.Background(), msg))

	assert.FileExists(t, filepath.Join(dir, "Dépenses_Détaillées_Juillet.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Finance_Juillet_2025.xlsx"))
}

func TestHandleRecordChangedSkipsInvalidMonths(t *testing.T) {
	dir := t.TempDir()
	w := newWorker(t, dir)

	// Built by hand: the constructor already drops invalid months.
	msg := &amqp.RecordChangedMessage{Kind: core.KindExpense, ID: "e9", Op: amqp.OpUpsert, Months: []amqp.MonthRef{{Month: 12, Year: 2025}}}
	require.NoError(t, w.HandleRecordChanged(context.Background(), msg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegenerateReturnsRendererError(t *testing.T) {
	w := NewReportWorker(seeded(t), t.TempDir(), export.NewXLSX(), failingRenderer{export.NewXLSX()})
	l, err := w.load(context.Background())
	require.NoError(t, err)

	_, err = w.Regenerate(context.Background(), l, 1, 2025)
	assert.Error(t, err)
}

func TestStartupRegenerate(t *testing.T) {
	dir := t.TempDir()
	w := newWorker(t, dir)
	require.NoError(t, w.StartupRegenerate(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "Finance_Mars_2025.xlsx"))
}
