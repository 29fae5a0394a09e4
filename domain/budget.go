package domain

import "time"

// BudgetDateLayout is the calendar-day key format for budget accounts.
const BudgetDateLayout = "2006-01-02"

// BudgetAccount tracks one management actor's remaining discretionary
// points for one calendar day. Remaining starts at the configured daily
// allowance, only ever decreases within the day, and never goes
// negative. Accounts are created lazily on first reservation and kept
// as historical records once the day has passed.
type BudgetAccount struct {
	ActorID   string    `json:"actor_id"`
	Date      string    `json:"date"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BudgetDay normalizes a timestamp to its calendar-day ledger key.
func BudgetDay(t time.Time) string {
	return t.UTC().Format(BudgetDateLayout)
}
