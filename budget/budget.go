// Package budget expands recurring budget targets into balanced transactions
// over a date range. Budget transactions are synthetic: they are generated on
// demand for reports and never committed to a journal.
package budget

import (
	"time"

	"github.com/brightbooks/keeper/journal"
)

// Budget owns a set of recurring posting targets
type Budget struct {
	targets []journal.RecurringPosting
}

// New returns a budget over the given targets
func New(targets ...journal.RecurringPosting) *Budget {
	return &Budget{targets: targets}
}

// ForJournal returns a budget over the journal's committed targets
func ForJournal(j *journal.Journal) *Budget {
	return New(j.BudgetTargets()...)
}

// Add appends targets to the budget
func (b *Budget) Add(targets ...journal.RecurringPosting) {
	b.targets = append(b.targets, targets...)
}

// Targets returns a copy of the budget's targets
func (b *Budget) Targets() []journal.RecurringPosting {
	targets := make([]journal.RecurringPosting, len(b.targets))
	copy(targets, b.targets)
	return targets
}

// Transactions expands every target into balanced two-posting transactions
// dated within [start, end] inclusive. Each generated posting is paired with
// its negation against 'counterpart'. Transaction IDs are assigned
// sequentially from 1.
func (b *Budget) Transactions(start, end time.Time, counterpart journal.QName) ([]journal.Transaction, error) {
	var txns []journal.Transaction
	id := 1
	for _, target := range b.targets {
		postings, err := target.PostingsBetween(start, end, id)
		if err != nil {
			return nil, err
		}
		for _, posting := range postings {
			negated := posting.Amount.Neg()
			balancing := journal.Posting{
				TxnID:   posting.TxnID,
				Date:    posting.Date,
				Account: counterpart,
				Amount:  &negated,
				Comment: posting.Comment,
			}
			txn, err := journal.NewTransaction([]journal.Posting{posting, balancing})
			if err != nil {
				return nil, err
			}
			txns = append(txns, txn)
		}
		id += len(postings)
	}
	return txns, nil
}

// MonthTransactions expands the budget for the calendar month containing 'month'
func (b *Budget) MonthTransactions(month time.Time, counterpart journal.QName) ([]journal.Transaction, error) {
	start := journal.Date(month.Year(), month.Month(), 1)
	end := start.AddDate(0, 1, -1)
	return b.Transactions(start, end, counterpart)
}

// YearTransactions expands the budget for the given calendar year
func (b *Budget) YearTransactions(year int, counterpart journal.QName) ([]journal.Transaction, error) {
	return b.Transactions(journal.Date(year, time.January, 1), journal.Date(year, time.December, 31), counterpart)
}
