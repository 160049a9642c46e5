package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the balance aggregate for a single ledger account.
// Its balance is mutated exclusively by the ledger engine; the current
// balance always equals the resulting balance of the latest entry.
type Account struct {
	ID        string
	UserID    string
	Currency  string
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Apply returns the balance after applying an entry of the given type.
func (a *Account) Apply(entryType EntryType, amount decimal.Decimal) decimal.Decimal {
	if entryType == EntryCredit {
		return a.Balance.Add(amount)
	}
	return a.Balance.Sub(amount)
}

// Balances is the three-way balance view exposed to callers.
type Balances struct {
	Current   decimal.Decimal
	Available decimal.Decimal
	Pending   decimal.Decimal
}
