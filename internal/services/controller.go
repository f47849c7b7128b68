package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gestion/internal/amqp"
	"gestion/internal/core"
	"gestion/internal/ledger"
	"gestion/internal/records"
)

var ErrInvalidMonth = errors.New("month must be between 0 and 11")

// Notifier receives an event after every successful write.
type Notifier interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
}

// ExpenseInput is a submitted expense form. An empty ID creates a record.
type ExpenseInput struct {
	ID          string
	Date        core.Date
	ProductName string
	Price       core.Money
	Photo       []byte
	// RemovePhoto drops the stored receipt on edit. Without it an edit that
	// carries no photo keeps the existing one.
	RemovePhoto bool
}

// ProvisionInput is a submitted provision form. An empty ID creates a record.
type ProvisionInput struct {
	ID     string
	Date   core.Date
	Amount core.Money
}

// MonthView is everything a month screen or export needs.
type MonthView struct {
	Summary    ledger.MonthSummary
	Expenses   []core.Expense
	Provisions []core.Provision
}

// Empty reports whether the month has no records.
func (v MonthView) Empty() bool {
	return len(v.Expenses) == 0 && len(v.Provisions) == 0
}

// Controller owns the in-memory snapshot of both partitions and the selected
// month. Every write goes to the store and is followed by a full reload before
// the write call returns.
type Controller struct {
	store    records.Store
	notifier Notifier

	writeMu sync.Mutex // serializes write+reload

	mu         sync.RWMutex
	expenses   []core.Expense
	provisions []core.Provision
	month      int
	year       int
}

// NewController selects the current month. The notifier may be nil.
func NewController(store records.Store, notifier Notifier) *Controller {
	now := time.Now()
	return &Controller{
		store:    store,
		notifier: notifier,
		month:    int(now.Month()) - 1,
		year:     now.Year(),
	}
}

// Reload replaces the snapshot with the store content.
func (c *Controller) Reload(ctx context.Context) error {
	exps, provs, err := records.LoadAll(ctx, c.store)
	if err != nil {
		return fmt.Errorf("reload records: %w", err)
	}
	c.mu.Lock()
	c.expenses, c.provisions = exps, provs
	c.mu.Unlock()
	return nil
}

// SaveExpense creates or edits an expense, then reloads.
func (c *Controller) SaveExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	e := core.Expense{
		ID:          in.ID,
		Date:        in.Date,
		ProductName: in.ProductName,
		Price:       in.Price,
		Photo:       in.Photo,
	}
	var touched []amqp.MonthRef
	if in.ID == "" {
		e.ID = core.NewID()
	} else if prev, ok := c.Expense(in.ID); ok {
		if len(e.Photo) == 0 && !in.RemovePhoto {
			e.Photo = prev.Photo
		}
		touched = append(touched, amqp.MonthOf(prev.Date))
	}
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := c.store.Upsert(ctx, core.ExpenseRecord(e)); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	if err := c.Reload(ctx); err != nil {
		return e, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"date", e.Date.String(),
		"price", e.Price.String(),
		"has_photo", len(e.Photo) > 0)
	c.notify(ctx, core.KindExpense, e.ID, amqp.OpUpsert, append(touched, amqp.MonthOf(e.Date)))
	return e, nil
}

// SaveProvision creates or edits a provision, then reloads.
func (c *Controller) SaveProvision(ctx context.Context, in ProvisionInput) (core.Provision, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	p := core.Provision{ID: in.ID, Date: in.Date, Amount: in.Amount}
	var touched []amqp.MonthRef
	if in.ID == "" {
		p.ID = core.NewID()
	} else if prev, ok := c.Provision(in.ID); ok {
		touched = append(touched, amqp.MonthOf(prev.Date))
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return core.Provision{}, err
	}

	if err := c.store.Upsert(ctx, core.ProvisionRecord(p)); err != nil {
		return core.Provision{}, fmt.Errorf("save provision: %w", err)
	}
	if err := c.Reload(ctx); err != nil {
		return p, err
	}

	slog.InfoContext(ctx, "Provision saved",
		"id", p.ID,
		"date", p.Date.String(),
		"amount", p.Amount.String())
	c.notify(ctx, core.KindProvision, p.ID, amqp.OpUpsert, append(touched, amqp.MonthOf(p.Date)))
	return p, nil
}

// Delete removes a record, then reloads. Unknown ids are not an error.
func (c *Controller) Delete(ctx context.Context, kind core.Kind, id string) error {
	if !kind.Valid() {
		return core.ErrInvalidKind
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var touched []amqp.MonthRef
	switch kind {
	case core.KindExpense:
		if prev, ok := c.Expense(id); ok {
			touched = append(touched, amqp.MonthOf(prev.Date))
		}
	case core.KindProvision:
		if prev, ok := c.Provision(id); ok {
			touched = append(touched, amqp.MonthOf(prev.Date))
		}
	}

	if err := c.store.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if err := c.Reload(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Record deleted", "kind", kind, "id", id)
	c.notify(ctx, kind, id, amqp.OpDelete, touched)
	return nil
}

func (c *Controller) notify(ctx context.Context, kind core.Kind, id string, op amqp.Operation, months []amqp.MonthRef) {
	if c.notifier == nil {
		return
	}
	msg := amqp.NewRecordChangedMessage(kind, id, op, months)
	if err := c.notifier.PublishRecordChanged(ctx, msg); err != nil {
		// The write already succeeded locally
		slog.ErrorContext(ctx, "Failed to publish record change", "kind", kind, "id", id, "error", err)
	}
}

// Select changes the selected month (0-11) and year.
func (c *Controller) Select(month, year int) error {
	if month < 0 || month > 11 {
		return ErrInvalidMonth
	}
	c.mu.Lock()
	c.month, c.year = month, year
	c.mu.Unlock()
	return nil
}

// Selected returns the selected month (0-11) and year.
func (c *Controller) Selected() (month, year int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.month, c.year
}

// Ledger returns a Ledger over the current snapshot.
func (c *Controller) Ledger() *ledger.Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ledger.New(c.expenses, c.provisions)
}

// View computes the selected month.
func (c *Controller) View() MonthView {
	month, year := c.Selected()
	return c.ViewOf(month, year)
}

// ViewOf computes any month.
func (c *Controller) ViewOf(month, year int) MonthView {
	return BuildView(c.Ledger(), month, year)
}

// BuildView computes a MonthView from l.
func BuildView(l *ledger.Ledger, month, year int) MonthView {
	return MonthView{
		Summary:    l.Summary(month, year),
		Expenses:   l.ExpensesIn(month, year),
		Provisions: l.ProvisionsIn(month, year),
	}
}

// Year computes the twelve month summaries of year.
func (c *Controller) Year(year int) []ledger.MonthSummary {
	return c.Ledger().Year(year)
}

// Expense finds an expense in the snapshot.
func (c *Controller) Expense(id string) (core.Expense, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

// Provision finds a provision in the snapshot.
func (c *Controller) Provision(id string) (core.Provision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.provisions {
		if p.ID == id {
			return p, true
		}
	}
	return core.Provision{}, false
}

// Counts returns the snapshot sizes.
func (c *Controller) Counts() (expenses, provisions int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.expenses), len(c.provisions)
}

// IsFuture reports whether month of year lies after the month of now.
// The ledger answers for any month; this only drives navigation.
func IsFuture(month, year int, now time.Time) bool {
	if year != now.Year() {
		return year > now.Year()
	}
	return month > int(now.Month())-1
}
