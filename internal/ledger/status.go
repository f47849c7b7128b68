package ledger

import "gestion/internal/core"

// Status labels a balance for display.
type Status string

const (
	WithinBudget Status = "within_budget"
	Overspent    Status = "overspent"
)

// StatusOf returns WithinBudget for a balance >= 0.
func StatusOf(balance core.Money) Status {
	if balance.IsNegative() {
		return Overspent
	}
	return WithinBudget
}
