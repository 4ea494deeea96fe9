package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidNameError is returned for malformed qualified names
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e InvalidNameError) Error() string {
	return fmt.Sprintf("Invalid account name '%s': %s", e.Name, e.Reason)
}

// UnknownAccountError is returned when a name resolves to no registered account
type UnknownAccountError struct {
	Name string
}

func (e UnknownAccountError) Error() string {
	return fmt.Sprintf("Unknown account: '%s'", e.Name)
}

// AmbiguousNameError is returned when a short name matches more than one account
type AmbiguousNameError struct {
	Name    string
	Matches []QName
}

func (e AmbiguousNameError) Error() string {
	names := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		names = append(names, m.String())
	}
	return fmt.Sprintf("Ambiguous account name '%s' matches: %s", e.Name, strings.Join(names, ", "))
}

// DuplicateAccountError is returned when registering an already registered name
type DuplicateAccountError struct {
	Name QName
}

func (e DuplicateAccountError) Error() string {
	return fmt.Sprintf("Duplicate account: '%s'", e.Name)
}

// MissingParentError is returned when an account's parent is not registered first
type MissingParentError struct {
	Name   QName
	Parent QName
}

func (e MissingParentError) Error() string {
	return fmt.Sprintf("Account '%s' requires parent '%s' to be added first", e.Name, e.Parent)
}

// NonLeafAccountError is returned when a posting references a branch account
type NonLeafAccountError struct {
	Name QName
}

func (e NonLeafAccountError) Error() string {
	return fmt.Sprintf("Account '%s' is not a leaf account", e.Name)
}

// EmptyTransactionError is returned for transactions without enough postings
type EmptyTransactionError struct {
	ID int
}

func (e EmptyTransactionError) Error() string {
	return fmt.Sprintf("Transaction %d must have at least 2 postings", e.ID)
}

// UnbalancedTransactionError is returned when a transaction's postings do not
// sum to zero
type UnbalancedTransactionError struct {
	ID  int
	Sum decimal.Decimal
}

func (e UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("Transaction %d does not balance, total: %s", e.ID, e.Sum)
}

// HeterogeneousDateError is returned when a transaction's postings disagree on
// their date
type HeterogeneousDateError struct {
	ID     int
	Reason string
}

func (e HeterogeneousDateError) Error() string {
	return fmt.Sprintf("Transaction %d has inconsistent postings: %s", e.ID, e.Reason)
}

// MixedTransactionIDError is returned when a transaction's postings carry more
// than one transaction ID
type MixedTransactionIDError struct {
	ID    int
	Other int
}

func (e MixedTransactionIDError) Error() string {
	return fmt.Sprintf("Transaction %d has inconsistent postings: mixed transaction IDs %d and %d", e.ID, e.ID, e.Other)
}

// InvalidTransactionIDError is returned for transaction IDs that are not
// positive integers
type InvalidTransactionIDError struct {
	ID int
}

func (e InvalidTransactionIDError) Error() string {
	return fmt.Sprintf("Transaction ID must be a positive integer, got %d", e.ID)
}

// MultiplePlugAmountsError is returned when more than one posting omits its amount
type MultiplePlugAmountsError struct {
	ID int
}

func (e MultiplePlugAmountsError) Error() string {
	return fmt.Sprintf("Transaction %d has more than one missing amount", e.ID)
}

// DuplicateTransactionIDError is returned when a transaction ID is already in use
type DuplicateTransactionIDError struct {
	ID int
}

func (e DuplicateTransactionIDError) Error() string {
	return fmt.Sprintf("Duplicate transaction ID found: %d", e.ID)
}

// DuplicateAssertionError is returned for a repeated (date, account) assertion key
type DuplicateAssertionError struct {
	Date    time.Time
	Account QName
}

func (e DuplicateAssertionError) Error() string {
	return fmt.Sprintf("Balance assertion for '%s' on %s already exists", e.Account, e.Date.Format(DateFormat))
}

// InvalidRangeError is returned for queries where the start date follows the end date
type InvalidRangeError struct {
	Start, End time.Time
}

func (e InvalidRangeError) Error() string {
	return fmt.Sprintf("Invalid date range: start %s is after end %s", e.Start.Format(DateFormat), e.End.Format(DateFormat))
}
