package journal

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/brightbooks/keeper/errs"
)

// Journal is the aggregate root for one set of books: the chart of accounts,
// the committed transactions, the balance assertions, and the budget targets.
//
// Mutations validate the whole batch before touching any state, so a failed
// call leaves the journal exactly as it was. The journal is not safe for
// concurrent mutation; callers serialize externally.
type Journal struct {
	chart         *ChartOfAccounts
	transactions  []Transaction
	assertions    []BalanceAssertion
	targets       []RecurringPosting
	txnIndex      map[int]int
	assertionKeys map[string]bool
	nextID        int
}

// NewJournal returns an empty journal around 'chart'. A nil chart gets a
// fresh default one.
func NewJournal(chart *ChartOfAccounts) *Journal {
	if chart == nil {
		chart = NewChart()
	}
	return &Journal{
		chart:         chart,
		txnIndex:      make(map[int]int),
		assertionKeys: make(map[string]bool),
		nextID:        1,
	}
}

// Load bulk-constructs a journal from loader output, validating everything
func Load(chart *ChartOfAccounts, accounts []Account, txns []Transaction, assertions []BalanceAssertion, targets []RecurringPosting) (*Journal, error) {
	j := NewJournal(chart)
	if err := j.AddAccounts(accounts...); err != nil {
		return nil, err
	}
	if _, err := j.AddTransactions(txns, false); err != nil {
		return nil, err
	}
	if err := j.AddAssertions(assertions); err != nil {
		return nil, err
	}
	if err := j.AddBudgetTargets(targets); err != nil {
		return nil, err
	}
	return j, nil
}

// Chart returns the journal's chart of accounts
func (j *Journal) Chart() *ChartOfAccounts {
	return j.chart
}

// AddAccounts registers accounts in the chart
func (j *Journal) AddAccounts(accounts ...Account) error {
	return j.chart.Add(accounts...)
}

// AddTransactions commits 'txns' after validating every posting's account
// resolves to a leaf. Posting account references are rewritten to canonical
// full names. With 'assignIDs', transaction IDs are overwritten sequentially
// from the journal's counter; otherwise the given IDs must not collide.
// Returns the transactions as committed.
func (j *Journal) AddTransactions(txns []Transaction, assignIDs bool) ([]Transaction, error) {
	committed := make([]Transaction, 0, len(txns))
	batchIDs := make(map[int]bool, len(txns))
	nextID := j.nextID
	for _, txn := range txns {
		resolved, err := j.resolveTransaction(txn)
		if err != nil {
			return nil, err
		}
		if assignIDs {
			resolved = resolved.WithID(nextID)
			nextID++
		} else {
			if _, exists := j.txnIndex[resolved.ID()]; exists || batchIDs[resolved.ID()] {
				return nil, DuplicateTransactionIDError{ID: resolved.ID()}
			}
			batchIDs[resolved.ID()] = true
		}
		committed = append(committed, resolved)
	}

	for _, txn := range committed {
		j.txnIndex[txn.ID()] = len(j.transactions)
		j.transactions = append(j.transactions, txn)
		if txn.ID() >= j.nextID {
			j.nextID = txn.ID() + 1
		}
	}
	return committed, nil
}

// resolveTransaction rewrites each posting's account to its canonical full
// name, requiring every account to resolve and be a leaf
func (j *Journal) resolveTransaction(txn Transaction) (Transaction, error) {
	postings := txn.Postings()
	for i, posting := range postings {
		account, err := j.chart.Resolve(posting.Account.String())
		if err != nil {
			return Transaction{}, err
		}
		if !j.chart.IsLeaf(account.Name) {
			return Transaction{}, NonLeafAccountError{Name: account.Name}
		}
		postings[i].Account = account.Name
	}
	return Transaction{id: txn.id, date: txn.date, postings: postings}, nil
}

// AddAssertions commits balance assertions. Branch accounts are allowed: the
// asserted balance then covers the account and its descendants.
func (j *Journal) AddAssertions(assertions []BalanceAssertion) error {
	resolved := make([]BalanceAssertion, 0, len(assertions))
	batchKeys := make(map[string]bool, len(assertions))
	for _, assertion := range assertions {
		account, err := j.chart.Resolve(assertion.Account.String())
		if err != nil {
			return err
		}
		assertion.Account = account.Name
		assertion.Date = Day(assertion.Date)
		assertion.Tags = copyTags(assertion.Tags)
		key := assertion.Key()
		if j.assertionKeys[key] || batchKeys[key] {
			return DuplicateAssertionError{Date: assertion.Date, Account: assertion.Account}
		}
		batchKeys[key] = true
		resolved = append(resolved, assertion)
	}

	for _, assertion := range resolved {
		j.assertionKeys[assertion.Key()] = true
		j.assertions = append(j.assertions, assertion)
	}
	return nil
}

// AddBudgetTargets commits recurring budget targets after validating their
// rules and resolving their accounts
func (j *Journal) AddBudgetTargets(targets []RecurringPosting) error {
	resolved := make([]RecurringPosting, 0, len(targets))
	for _, target := range targets {
		if err := target.Validate(); err != nil {
			return err
		}
		account, err := j.chart.Resolve(target.Account.String())
		if err != nil {
			return err
		}
		target.Account = account.Name
		target.Tags = copyTags(target.Tags)
		resolved = append(resolved, target)
	}
	j.targets = append(j.targets, resolved...)
	return nil
}

// Transactions returns a copy of the committed transactions
func (j *Journal) Transactions() []Transaction {
	txns := make([]Transaction, len(j.transactions))
	copy(txns, j.transactions)
	return txns
}

// Transaction returns the committed transaction with 'id'
func (j *Journal) Transaction(id int) (Transaction, bool) {
	index, exists := j.txnIndex[id]
	if !exists {
		return Transaction{}, false
	}
	return j.transactions[index], true
}

// Assertions returns a copy of the committed balance assertions
func (j *Journal) Assertions() []BalanceAssertion {
	assertions := make([]BalanceAssertion, len(j.assertions))
	copy(assertions, j.assertions)
	return assertions
}

// BudgetTargets returns a copy of the committed budget targets
func (j *Journal) BudgetTargets() []RecurringPosting {
	targets := make([]RecurringPosting, len(j.targets))
	copy(targets, j.targets)
	return targets
}

// Postings returns every posting of every committed transaction
func (j *Journal) Postings() []Posting {
	var postings []Posting
	for _, txn := range j.transactions {
		postings = append(postings, txn.postings...)
	}
	return postings
}

// NextTxnID returns the next unused transaction ID
func (j *Journal) NextTxnID() int {
	return j.nextID
}

// KnownKeys returns the dedup-key multiset over all committed postings,
// used by bank import to discard already recorded postings
func (j *Journal) KnownKeys() map[DedupKey]int {
	known := make(map[DedupKey]int)
	for _, txn := range j.transactions {
		for _, posting := range txn.postings {
			known[posting.DedupKey()]++
		}
	}
	return known
}

// Balance returns the cumulative balance of 'account' (including its
// descendants) as of 'asOf' inclusive.
//
// Each call is an O(n) scan over all postings. Callers checking many
// assertions should use FailedAssertions, which sorts once and sweeps.
func (j *Journal) Balance(account string, asOf time.Time, useStmtDate bool) (decimal.Decimal, error) {
	resolved, err := j.chart.Resolve(account)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, txn := range j.transactions {
		for _, posting := range txn.postings {
			if posting.Account.IsEqualOrDescendantOf(resolved.Name) && !posting.EffectiveDate(useStmtDate).After(asOf) {
				sum = sum.Add(*posting.Amount)
			}
		}
	}
	return sum, nil
}

// Flow returns the net change of 'account' over [start, end] inclusive:
// Balance(end) minus Balance(start - 1 day)
func (j *Journal) Flow(account string, start, end time.Time) (decimal.Decimal, error) {
	if start.After(end) {
		return decimal.Zero, InvalidRangeError{Start: start, End: end}
	}
	endBalance, err := j.Balance(account, end, false)
	if err != nil {
		return decimal.Zero, err
	}
	startBalance, err := j.Balance(account, start.AddDate(0, 0, -1), false)
	if err != nil {
		return decimal.Zero, err
	}
	return endBalance.Sub(startBalance), nil
}

// LastAssertion returns the most recent balance assertion for 'account', or
// nil when the account has none. Errors only on name resolution failure.
func (j *Journal) LastAssertion(account string) (*BalanceAssertion, error) {
	resolved, err := j.chart.Resolve(account)
	if err != nil {
		return nil, err
	}
	var last *BalanceAssertion
	for i := range j.assertions {
		assertion := &j.assertions[i]
		if assertion.Account != resolved.Name {
			continue
		}
		if last == nil || assertion.Date.After(last.Date) {
			last = assertion
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	copied.Tags = copyTags(last.Tags)
	return &copied, nil
}

// FailedAssertions returns every balance assertion whose claimed balance
// disagrees with the computed cumulative balance at its date.
//
// Balances are computed over statement dates in a single sorted sweep:
// postings and assertions are merged in date order against a running
// per-account balance map, avoiding a full Balance scan per assertion.
func (j *Journal) FailedAssertions() []AssertionFailure {
	postings := j.Postings()
	sort.SliceStable(postings, func(a, b int) bool {
		return postings[a].StatementDate().Before(postings[b].StatementDate())
	})
	assertions := j.Assertions()
	sort.SliceStable(assertions, func(a, b int) bool {
		return assertions[a].Date.Before(assertions[b].Date)
	})

	running := make(map[QName]decimal.Decimal)
	var failures []AssertionFailure
	next := 0
	for _, assertion := range assertions {
		for next < len(postings) && !postings[next].StatementDate().After(assertion.Date) {
			account := postings[next].Account
			running[account] = running[account].Add(*postings[next].Amount)
			next++
		}
		actual := decimal.Zero
		for account, balance := range running {
			if account.IsEqualOrDescendantOf(assertion.Account) {
				actual = actual.Add(balance)
			}
		}
		if !actual.Equal(assertion.Balance) {
			failures = append(failures, AssertionFailure{Assertion: assertion, Actual: actual})
		}
	}
	return failures
}

// FindSubset searches 'account' postings within [start, end] for a subset
// whose amounts sum exactly to 'target', to explain a reconciliation
// discrepancy. Postings nearer the end of the range are preferred. Returns
// nil when no subset exists.
func (j *Journal) FindSubset(target decimal.Decimal, account string, start, end time.Time, useStmtDate bool) ([]Posting, error) {
	if start.After(end) {
		return nil, InvalidRangeError{Start: start, End: end}
	}
	resolved, err := j.chart.Resolve(account)
	if err != nil {
		return nil, err
	}
	var candidates []Posting
	for _, txn := range j.transactions {
		for _, posting := range txn.postings {
			date := posting.EffectiveDate(useStmtDate)
			if posting.Account.IsEqualOrDescendantOf(resolved.Name) && !date.Before(start) && !date.After(end) {
				candidates = append(candidates, posting)
			}
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].EffectiveDate(useStmtDate).After(candidates[b].EffectiveDate(useStmtDate))
	})
	amounts := make([]decimal.Decimal, len(candidates))
	for i, posting := range candidates {
		amounts[i] = *posting.Amount
	}
	indices := subsetSum(amounts, target)
	if indices == nil {
		return nil, nil
	}
	subset := make([]Posting, 0, len(indices))
	for _, i := range indices {
		posting := candidates[i]
		posting.Tags = copyTags(posting.Tags)
		subset = append(subset, posting)
	}
	return subset, nil
}

// AccountAdjustment configures AdjustForAssertions for one account
type AccountAdjustment struct {
	// Account is the asserted account to reconcile
	Account string
	// Counterpart receives the balancing leg of each adjustment
	Counterpart string
	// Child optionally narrows the adjustment leg to a descendant of
	// Account. Defaults to Account itself.
	Child string
	// Force emits an adjustment even when the discrepancy is zero
	Force bool
	// Comment annotates the generated postings
	Comment string
}

// AdjustForAssertions synthesizes and commits a two-posting transaction for
// every balance assertion discrepancy on the given accounts, zeroing it out
// against the configured counterpart. Assertions are processed in date order,
// so earlier adjustments feed into later balances. Returns the committed
// transactions.
func (j *Journal) AdjustForAssertions(adjustments []AccountAdjustment) ([]Transaction, error) {
	var committed []Transaction
	for _, adjustment := range adjustments {
		account, err := j.chart.Resolve(adjustment.Account)
		if err != nil {
			return committed, err
		}
		counterpart, err := j.chart.Resolve(adjustment.Counterpart)
		if err != nil {
			return committed, err
		}
		child := account
		if adjustment.Child != "" {
			child, err = j.chart.Resolve(adjustment.Child)
			if err != nil {
				return committed, err
			}
			if !child.Name.IsEqualOrDescendantOf(account.Name) {
				return committed, errors.Errorf("Adjustment child account '%s' is not under '%s'", child.Name, account.Name)
			}
		}

		assertions := j.assertionsFor(account.Name)
		for _, assertion := range assertions {
			actual, err := j.Balance(account.Name.String(), assertion.Date, true)
			if err != nil {
				return committed, err
			}
			diff := assertion.Balance.Sub(actual)
			if diff.IsZero() && !adjustment.Force {
				continue
			}
			negated := diff.Neg()
			txn, err := NewTransaction([]Posting{
				{
					TxnID:   j.nextID,
					Date:    assertion.Date,
					Account: child.Name,
					Amount:  &diff,
					Comment: adjustment.Comment,
				},
				{
					TxnID:   j.nextID,
					Date:    assertion.Date,
					Account: counterpart.Name,
					Amount:  &negated,
					Comment: adjustment.Comment,
				},
			})
			if err != nil {
				return committed, err
			}
			added, err := j.AddTransactions([]Transaction{txn}, true)
			if err != nil {
				return committed, err
			}
			committed = append(committed, added...)
		}
	}
	return committed, nil
}

// assertionsFor returns the account's assertions sorted by date
func (j *Journal) assertionsFor(account QName) []BalanceAssertion {
	var matched []BalanceAssertion
	for _, assertion := range j.assertions {
		if assertion.Account == account {
			matched = append(matched, assertion)
		}
	}
	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].Date.Before(matched[b].Date)
	})
	return matched
}

// Renumber rewrites every transaction ID sequentially from 1, ordered by
// (date, old ID). Deterministic and stable: re-running it is a no-op.
func (j *Journal) Renumber() {
	SortTransactions(j.transactions)
	renumbered := make([]Transaction, len(j.transactions))
	index := make(map[int]int, len(j.transactions))
	for i, txn := range j.transactions {
		renumbered[i] = txn.WithID(i + 1)
		index[i+1] = i
	}
	j.transactions = renumbered
	j.txnIndex = index
	j.nextID = len(renumbered) + 1
}

// Validate re-checks every journal invariant from scratch: transactions
// balance, IDs are unique, accounts resolve to leaves, and assertion keys
// are unique. A journal mutated only through its own methods always passes.
func (j *Journal) Validate() error {
	var failures errs.Errors
	seenIDs := make(map[int]bool, len(j.transactions))
	for _, txn := range j.transactions {
		if _, err := NewTransaction(txn.postings); err != nil {
			failures.AddErr(err)
		}
		if seenIDs[txn.ID()] {
			failures.AddErr(DuplicateTransactionIDError{ID: txn.ID()})
		}
		seenIDs[txn.ID()] = true
		for _, posting := range txn.postings {
			if !j.chart.Contains(posting.Account) {
				failures.AddErr(UnknownAccountError{Name: posting.Account.String()})
			} else if !j.chart.IsLeaf(posting.Account) {
				failures.AddErr(NonLeafAccountError{Name: posting.Account})
			}
		}
	}
	seenKeys := make(map[string]bool, len(j.assertions))
	for _, assertion := range j.assertions {
		if !j.chart.Contains(assertion.Account) {
			failures.AddErr(UnknownAccountError{Name: assertion.Account.String()})
		}
		if seenKeys[assertion.Key()] {
			failures.AddErr(DuplicateAssertionError{Date: assertion.Date, Account: assertion.Account})
		}
		seenKeys[assertion.Key()] = true
	}
	return failures.ErrOrNil()
}
