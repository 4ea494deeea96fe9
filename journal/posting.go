package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical date layout for journal dates
const DateFormat = "2006-01-02"

// Posting is one leg of a transaction: a signed amount applied to an account
// on a date. A nil Amount marks the transaction's plug leg, back-solved as
// the negation of the other legs during transaction validation.
type Posting struct {
	TxnID   int
	Date    time.Time
	Account QName
	Amount  *decimal.Decimal
	Comment string
	// StmtDate is the date the posting cleared on a bank statement.
	// Zero means same as Date.
	StmtDate time.Time
	StmtDesc string
	Tags     map[string]string
}

// StatementDate returns StmtDate, falling back to Date
func (p Posting) StatementDate() time.Time {
	if p.StmtDate.IsZero() {
		return p.Date
	}
	return p.StmtDate
}

// EffectiveDate returns the statement date if 'useStmtDate' is set, else the
// posting date
func (p Posting) EffectiveDate(useStmtDate bool) time.Time {
	if useStmtDate {
		return p.StatementDate()
	}
	return p.Date
}

// DedupKey identifies a posting for bank import deduplication. The
// transaction ID is deliberately excluded: re-imported statements receive
// new IDs.
type DedupKey string

// DedupKey returns the (date, account, amount, statement description) key
func (p Posting) DedupKey() DedupKey {
	amount := ""
	if p.Amount != nil {
		amount = amountKey(*p.Amount)
	}
	return DedupKey(strings.Join([]string{
		p.Date.Format(DateFormat),
		p.Account.String(),
		amount,
		p.StmtDesc,
	}, "|"))
}

// WithTxnID returns a copy of the posting with a new transaction ID.
// The copy owns its own tag map.
func (p Posting) WithTxnID(id int) Posting {
	p.TxnID = id
	p.Tags = copyTags(p.Tags)
	return p
}

// WithAccount returns a copy of the posting moved to 'account'
func (p Posting) WithAccount(account QName) Posting {
	p.Account = account
	p.Tags = copyTags(p.Tags)
	return p
}

func (p Posting) String() string {
	amount := "(plug)"
	if p.Amount != nil {
		amount = p.Amount.String()
	}
	return fmt.Sprintf("%d %s %s %s", p.TxnID, p.Date.Format(DateFormat), p.Account, amount)
}

// SortPostings orders postings by (date, transaction ID, account), stable
func SortPostings(postings []Posting) {
	sort.SliceStable(postings, func(a, b int) bool {
		if !postings[a].Date.Equal(postings[b].Date) {
			return postings[a].Date.Before(postings[b].Date)
		}
		if postings[a].TxnID != postings[b].TxnID {
			return postings[a].TxnID < postings[b].TxnID
		}
		return postings[a].Account.Less(postings[b].Account)
	})
}

// amountKey returns a canonical string for a decimal, so numerically equal
// amounts with different exponents ("4.50" vs "4.5") map to the same key
func amountKey(d decimal.Decimal) string {
	s := d.String()
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

// Day truncates 't' to midnight UTC, the canonical journal date form
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date is shorthand for a journal date at day granularity
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
