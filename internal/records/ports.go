package records

import (
	"context"

	"gestion/internal/core"
)

// Ports for the record store. Implementations give no ordering guarantee.
type (
	Lister interface {
		// ListAll returns every record of kind.
		ListAll(ctx context.Context, kind core.Kind) ([]core.Record, error)
	}

	// Upserter inserts or replaces a record by id.
	Upserter interface {
		Upsert(ctx context.Context, r core.Record) error
	}

	// Deleter removes a record. Deleting an unknown id is not an error.
	Deleter interface {
		Delete(ctx context.Context, kind core.Kind, id string) error
	}

	Store interface {
		Lister
		Upserter
		Deleter
	}
)

// LoadAll lists both partitions and splits them into typed slices.
func LoadAll(ctx context.Context, l Lister) ([]core.Expense, []core.Provision, error) {
	exps, err := l.ListAll(ctx, core.KindExpense)
	if err != nil {
		return nil, nil, err
	}
	provs, err := l.ListAll(ctx, core.KindProvision)
	if err != nil {
		return nil, nil, err
	}
	e, _ := core.SplitRecords(exps)
	_, p := core.SplitRecords(provs)
	return e, p, nil
}
