package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceAssertion claims that an account's cumulative balance at a date
// equals Balance. The account may be a branch: the claim is then checked
// against the sum over the account and all of its descendants.
type BalanceAssertion struct {
	Date    time.Time
	Account QName
	Balance decimal.Decimal
	Comment string
	Tags    map[string]string
}

// Key returns the assertion's dedup key: one assertion per (date, account)
func (b BalanceAssertion) Key() string {
	return b.Date.Format(DateFormat) + "|" + b.Account.String()
}

func (b BalanceAssertion) String() string {
	return fmt.Sprintf("BAssertion %s %s %s", b.Date.Format(DateFormat), b.Account, b.Balance)
}

// AssertionFailure pairs a failed assertion with the balance the journal
// actually computed at its date
type AssertionFailure struct {
	Assertion BalanceAssertion
	Actual    decimal.Decimal
}

// Diff returns the discrepancy: asserted minus actual
func (f AssertionFailure) Diff() decimal.Decimal {
	return f.Assertion.Balance.Sub(f.Actual)
}

func (f AssertionFailure) String() string {
	return fmt.Sprintf("%s: asserted %s, actual %s", f.Assertion, f.Assertion.Balance, f.Actual)
}
