package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultProductName labels an expense submitted without a product name.
const DefaultProductName = "Produit sans nom"

// DateLayout is the persisted and displayed form of a Date.
const DateLayout = "2006-01-02"

const (
	KindExpense   Kind = "expenses"
	KindProvision Kind = "provisions"
)

type (
	// Kind names a record partition.
	Kind string

	// Date is a calendar day. The zero Date belongs to no month.
	Date struct {
		time.Time
	}

	Expense struct {
		ID          string
		Date        Date
		ProductName string
		Price       Money
		Photo       []byte // encoded receipt image, opaque
	}

	// Provision is an income top-up ("alimentation") for the month of its date.
	Provision struct {
		ID     string
		Date   Date
		Amount Money
	}

	// Record is either an Expense or a Provision, selected by Kind.
	Record struct {
		Kind      Kind
		Expense   *Expense
		Provision *Provision
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid record kind")
	ErrEmptyID       = errors.New("empty record id")
	ErrNameTooLong   = errors.New("product name too long (max 200 characters)")
)

// NewDate creates a Date from year, month (1-12) and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOrZero parses s and returns the zero Date when it is malformed.
func DateOrZero(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

// Today returns the current date in UTC.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, int(m), d)
}

// String formats the date as YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// In reports whether the date falls in the given 0-indexed month of year.
func (d Date) In(month, year int) bool {
	if d.IsZero() {
		return false
	}
	return d.Time.Year() == year && int(d.Time.Month())-1 == month
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Valid reports whether k is a known partition.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindProvision
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts partition names plus the legacy "alimentation" name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expenses", "expense":
		return KindExpense, nil
	case "provisions", "provision", "alimentation":
		return KindProvision, nil
	}
	return "", ErrInvalidKind
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// Normalize applies form defaults: a missing product name, date or price.
func (e Expense) Normalize() Expense {
	e.ProductName = strings.TrimSpace(e.ProductName)
	if e.ProductName == "" {
		e.ProductName = DefaultProductName
	}
	if e.Date.IsZero() {
		e.Date = Today()
	}
	return e
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.ProductName) > 200 {
		return ErrNameTooLong
	}
	if e.Price.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Normalize fills a missing date with today.
func (p Provision) Normalize() Provision {
	if p.Date.IsZero() {
		p.Date = Today()
	}
	return p
}

func (p Provision) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyID
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// ExpenseRecord wraps e as a Record.
func ExpenseRecord(e Expense) Record {
	return Record{Kind: KindExpense, Expense: &e}
}

// ProvisionRecord wraps p as a Record.
func ProvisionRecord(p Provision) Record {
	return Record{Kind: KindProvision, Provision: &p}
}

// ID returns the id of the wrapped record.
func (r Record) ID() string {
	switch r.Kind {
	case KindExpense:
		if r.Expense != nil {
			return r.Expense.ID
		}
	case KindProvision:
		if r.Provision != nil {
			return r.Provision.ID
		}
	}
	return ""
}

// Date returns the date of the wrapped record.
func (r Record) Date() Date {
	switch r.Kind {
	case KindExpense:
		if r.Expense != nil {
			return r.Expense.Date
		}
	case KindProvision:
		if r.Provision != nil {
			return r.Provision.Date
		}
	}
	return Date{}
}

// Validate checks that the discriminant matches the payload and the payload is valid.
func (r Record) Validate() error {
	switch r.Kind {
	case KindExpense:
		if r.Expense == nil {
			return ErrInvalidKind
		}
		return r.Expense.Validate()
	case KindProvision:
		if r.Provision == nil {
			return ErrInvalidKind
		}
		return r.Provision.Validate()
	}
	return ErrInvalidKind
}

// SplitRecords separates a mixed record list by kind.
func SplitRecords(rs []Record) ([]Expense, []Provision) {
	var exps []Expense
	var provs []Provision
	for _, r := range rs {
		switch {
		case r.Kind == KindExpense && r.Expense != nil:
			exps = append(exps, *r.Expense)
		case r.Kind == KindProvision && r.Provision != nil:
			provs = append(provs, *r.Provision)
		}
	}
	return exps, provs
}
