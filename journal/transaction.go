package journal

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a balanced group of postings sharing one ID and one date.
// Its amounts always sum to exactly zero: the invariant is established at
// construction and never broken afterward, so a Transaction is only built
// through NewTransaction or TransactionsFromPostings.
type Transaction struct {
	id       int
	date     time.Time
	postings []Posting
}

// NewTransaction validates 'postings' as one double-entry transaction.
// At most one posting may omit its amount; it is back-solved as the negation
// of the rest.
func NewTransaction(postings []Posting) (Transaction, error) {
	if len(postings) < 2 {
		id := 0
		if len(postings) == 1 {
			id = postings[0].TxnID
		}
		return Transaction{}, EmptyTransactionError{ID: id}
	}
	id := postings[0].TxnID
	if id <= 0 {
		return Transaction{}, InvalidTransactionIDError{ID: id}
	}
	date := postings[0].Date

	copied := make([]Posting, len(postings))
	plug := -1
	sum := decimal.Zero
	for i, posting := range postings {
		if posting.TxnID != id {
			return Transaction{}, MixedTransactionIDError{ID: id, Other: posting.TxnID}
		}
		if !posting.Date.Equal(date) {
			return Transaction{}, HeterogeneousDateError{ID: id, Reason: fmt.Sprintf("mixed dates %s and %s", date.Format(DateFormat), posting.Date.Format(DateFormat))}
		}
		copied[i] = posting
		copied[i].Tags = copyTags(posting.Tags)
		if posting.Amount == nil {
			if plug != -1 {
				return Transaction{}, MultiplePlugAmountsError{ID: id}
			}
			plug = i
			continue
		}
		amount := *posting.Amount
		copied[i].Amount = &amount
		sum = sum.Add(amount)
	}
	if plug != -1 {
		solved := sum.Neg()
		copied[plug].Amount = &solved
		sum = decimal.Zero
	}
	if !sum.IsZero() {
		return Transaction{}, UnbalancedTransactionError{ID: id, Sum: sum}
	}
	return Transaction{id: id, date: date, postings: copied}, nil
}

// TransactionsFromPostings groups a flat posting list by transaction ID and
// validates each group. Transactions come back ordered by first appearance.
func TransactionsFromPostings(postings []Posting) ([]Transaction, error) {
	var order []int
	groups := make(map[int][]Posting)
	for _, posting := range postings {
		if _, seen := groups[posting.TxnID]; !seen {
			order = append(order, posting.TxnID)
		}
		groups[posting.TxnID] = append(groups[posting.TxnID], posting)
	}
	txns := make([]Transaction, 0, len(order))
	for _, id := range order {
		txn, err := NewTransaction(groups[id])
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// ID returns the transaction ID shared by all postings
func (t Transaction) ID() int {
	return t.id
}

// Date returns the date shared by all postings
func (t Transaction) Date() time.Time {
	return t.date
}

// Postings returns a copy of the transaction's postings
func (t Transaction) Postings() []Posting {
	postings := make([]Posting, len(t.postings))
	copy(postings, t.postings)
	for i := range postings {
		postings[i].Tags = copyTags(postings[i].Tags)
	}
	return postings
}

// WithID returns a copy of the transaction renumbered to 'id'
func (t Transaction) WithID(id int) Transaction {
	postings := make([]Posting, len(t.postings))
	for i, posting := range t.postings {
		postings[i] = posting.WithTxnID(id)
	}
	return Transaction{id: id, date: t.date, postings: postings}
}

// Is1ToN reports whether one side of the transaction funds all the others:
// at most one posting is strictly positive, or at most one is strictly
// negative. This is a ledger-quality warning, not an invariant.
func (t Transaction) Is1ToN() bool {
	positive, negative := 0, 0
	for _, posting := range t.postings {
		switch {
		case posting.Amount.IsPositive():
			positive++
		case posting.Amount.IsNegative():
			negative++
		}
	}
	return positive <= 1 || negative <= 1
}

// Simplify merges postings sharing (account, statement date) by summing their
// amounts, dropping zero results and per-posting metadata. Returns nil if
// everything cancels out.
func (t Transaction) Simplify() *Transaction {
	type mergeKey struct {
		account  QName
		stmtDate time.Time
	}
	var order []mergeKey
	sums := make(map[mergeKey]decimal.Decimal)
	for _, posting := range t.postings {
		key := mergeKey{account: posting.Account, stmtDate: posting.StatementDate()}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] = sums[key].Add(*posting.Amount)
	}
	var postings []Posting
	for _, key := range order {
		sum := sums[key]
		if sum.IsZero() {
			continue
		}
		amount := sum
		postings = append(postings, Posting{
			TxnID:    t.id,
			Date:     t.date,
			Account:  key.account,
			Amount:   &amount,
			StmtDate: key.stmtDate,
		})
	}
	if len(postings) == 0 {
		return nil
	}
	return &Transaction{id: t.id, date: t.date, postings: postings}
}

func (t Transaction) String() string {
	lines := make([]string, 0, len(t.postings)+1)
	lines = append(lines, fmt.Sprintf("Txn %d %s", t.id, t.date.Format(DateFormat)))
	for _, posting := range t.postings {
		lines = append(lines, "  "+posting.String())
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON encodes the transaction's ID, date, and postings
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       int
		Date     time.Time
		Postings []Posting
	}{
		ID:       t.id,
		Date:     t.date,
		Postings: t.postings,
	})
}

// SortTransactions orders transactions by (date, ID), stable
func SortTransactions(txns []Transaction) {
	sort.SliceStable(txns, func(a, b int) bool {
		if !txns[a].date.Equal(txns[b].date) {
			return txns[a].date.Before(txns[b].date)
		}
		return txns[a].id < txns[b].id
	})
}
