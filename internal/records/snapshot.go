package records

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"gestion/internal/core"
)

// Snapshot is the JSON form of both partitions. Field names follow the
// browser store the data was first kept in, so old backups load unchanged.
type Snapshot struct {
	Expenses   []ExpenseDoc   `json:"expenses"`
	Provisions []ProvisionDoc `json:"alimentation"`
}

type ExpenseDoc struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Photo       Photo           `json:"photo,omitempty"`
}

// Photo is an encoded receipt image kept in JSON as a data URL
// ("data:image/jpeg;base64,..."). Bare base64 is accepted on read.
type Photo []byte

const photoDataURLPrefix = "data:image/jpeg;base64,"

func (p Photo) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(photoDataURLPrefix + base64.StdEncoding.EncodeToString(p))
}

func (p *Photo) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("photo: %w", err)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return fmt.Errorf("photo: unsupported data URL")
		}
		s = s[i+1:]
	}
	if s == "" {
		*p = nil
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("photo: %w", err)
	}
	*p = raw
	return nil
}

type ProvisionDoc struct {
	ID     string          `json:"id"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Expense converts the document. A malformed date becomes the zero Date.
func (d ExpenseDoc) Expense() core.Expense {
	return core.Expense{
		ID:          d.ID,
		Date:        core.DateOrZero(d.Date),
		ProductName: d.ProductName,
		Price:       core.Money{Decimal: d.Price},
		Photo:       []byte(d.Photo),
	}
}

func (d ProvisionDoc) Provision() core.Provision {
	return core.Provision{
		ID:     d.ID,
		Date:   core.DateOrZero(d.Date),
		Amount: core.Money{Decimal: d.Amount},
	}
}

func NewExpenseDoc(e core.Expense) ExpenseDoc {
	return ExpenseDoc{ID: e.ID, Date: e.Date.String(), ProductName: e.ProductName, Price: e.Price.Decimal, Photo: Photo(e.Photo)}
}

func NewProvisionDoc(p core.Provision) ProvisionDoc {
	return ProvisionDoc{ID: p.ID, Date: p.Date.String(), Amount: p.Amount.Decimal}
}

// ReadSnapshot decodes a JSON snapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// WriteSnapshot encodes s as indented JSON.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Records returns the snapshot content as tagged records.
func (s Snapshot) Records() []core.Record {
	out := make([]core.Record, 0, len(s.Expenses)+len(s.Provisions))
	for _, d := range s.Expenses {
		out = append(out, core.ExpenseRecord(d.Expense()))
	}
	for _, d := range s.Provisions {
		out = append(out, core.ProvisionRecord(d.Provision()))
	}
	return out
}

// Export reads every record from l into a Snapshot.
func Export(ctx context.Context, l Lister) (Snapshot, error) {
	exps, provs, err := LoadAll(ctx, l)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		Expenses:   make([]ExpenseDoc, 0, len(exps)),
		Provisions: make([]ProvisionDoc, 0, len(provs)),
	}
	for _, e := range exps {
		s.Expenses = append(s.Expenses, NewExpenseDoc(e))
	}
	for _, p := range provs {
		s.Provisions = append(s.Provisions, NewProvisionDoc(p))
	}
	return s, nil
}

// Import upserts every record of s into u. Records are written one by one;
// a failure leaves the earlier ones in place.
func Import(ctx context.Context, u Upserter, s Snapshot) (int, error) {
	n := 0
	for _, r := range s.Records() {
		if r.ID() == "" {
			continue
		}
		if err := u.Upsert(ctx, r); err != nil {
			return n, fmt.Errorf("import %s %s: %w", r.Kind, r.ID(), err)
		}
		n++
	}
	return n, nil
}
