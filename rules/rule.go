// Package rules classifies imported bank postings into balanced transactions
// using an ordered list of match rules.
package rules

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/brightbooks/keeper/journal"
)

// Classifier turns one candidate posting into zero or more balanced
// transactions. Returning no transactions discards the posting.
type Classifier interface {
	Classify(posting journal.Posting) ([]journal.Transaction, error)
}

// Split configures an extra transaction emitted alongside a rule's main one,
// moving Amount from Account1 to Account2
type Split struct {
	Account1 string
	Account2 string
	Amount   decimal.Decimal
}

// Rule matches candidate postings and decides their counterpart account.
// All set conditions must hold for the rule to match. On match, the posting
// either gets discarded or paired against Account2, optionally with a Split.
type Rule struct {
	// conditions
	Account            string
	DescriptionPrefix  string
	DescriptionEquals  []string
	DescriptionPattern string
	AmountEquals       *decimal.Decimal
	AmountAbove        *decimal.Decimal
	AmountBelow        *decimal.Decimal

	// actions
	Discard  bool
	Account2 string
	Comment  string
	Split    *Split

	pattern *regexp.Regexp
}

// compile validates the rule and prepares its description pattern
func (r *Rule) compile() error {
	if !r.Discard && r.Account2 == "" {
		return errors.New("Invalid rule: no counterpart account selected")
	}
	if r.DescriptionPattern == "" {
		return nil
	}
	pattern, err := regexp.Compile("(?i)" + r.DescriptionPattern)
	if err != nil {
		return errors.Wrap(err, "Invalid rule description pattern")
	}
	r.pattern = pattern
	return nil
}

// Match reports whether every set condition holds for 'posting'
func (r Rule) Match(posting journal.Posting) bool {
	if r.DescriptionPrefix != "" && !strings.HasPrefix(posting.StmtDesc, r.DescriptionPrefix) {
		return false
	}
	if len(r.DescriptionEquals) > 0 && !contains(r.DescriptionEquals, posting.StmtDesc) {
		return false
	}
	if r.pattern != nil && !r.pattern.MatchString(posting.StmtDesc) {
		return false
	}
	if posting.Amount == nil {
		return false
	}
	if r.AmountEquals != nil && !posting.Amount.Equal(*r.AmountEquals) {
		return false
	}
	if r.AmountAbove != nil && posting.Amount.Cmp(*r.AmountAbove) <= 0 {
		return false
	}
	if r.AmountBelow != nil && posting.Amount.Cmp(*r.AmountBelow) >= 0 {
		return false
	}
	if r.Account != "" && posting.Account.String() != r.Account {
		return false
	}
	return true
}

// Apply builds the rule's transactions for a matched posting. Returns no
// transactions for discard rules. The posting is never mutated: every emitted
// transaction is built from copies.
func (r Rule) Apply(posting journal.Posting) ([]journal.Transaction, error) {
	if r.Discard {
		return nil, nil
	}
	counterpart, err := journal.ParseQName(r.Account2)
	if err != nil {
		return nil, err
	}
	main := posting.WithTxnID(posting.TxnID)
	if r.Comment != "" {
		main.Comment = r.Comment
	}
	negated := main.Amount.Neg()
	balancing := journal.Posting{
		TxnID:    main.TxnID,
		Date:     main.Date,
		Account:  counterpart,
		Amount:   &negated,
		Comment:  main.Comment,
		StmtDate: main.StmtDate,
		StmtDesc: main.StmtDesc,
	}
	txn, err := journal.NewTransaction([]journal.Posting{main, balancing})
	if err != nil {
		return nil, err
	}
	txns := []journal.Transaction{txn}

	if r.Split != nil {
		splitTxn, err := r.splitTransaction(posting)
		if err != nil {
			return nil, err
		}
		txns = append(txns, splitTxn)
	}
	return txns, nil
}

func (r Rule) splitTransaction(posting journal.Posting) (journal.Transaction, error) {
	account1, err := journal.ParseQName(r.Split.Account1)
	if err != nil {
		return journal.Transaction{}, err
	}
	account2, err := journal.ParseQName(r.Split.Account2)
	if err != nil {
		return journal.Transaction{}, err
	}
	id := posting.TxnID + 1
	amount := r.Split.Amount
	negated := amount.Neg()
	return journal.NewTransaction([]journal.Posting{
		{TxnID: id, Date: posting.Date, Account: account1, Amount: &amount, Comment: r.Comment},
		{TxnID: id, Date: posting.Date, Account: account2, Amount: &negated, Comment: r.Comment},
	})
}

// UncategorizedTag marks transactions produced by the fallback, so reports
// can surface postings no rule recognized
const UncategorizedTag = "uncategorized"

// Rules is an ordered first-match-wins classifier. Postings no rule matches
// classify against the fallback account and are tagged uncategorized.
type Rules struct {
	rules    []Rule
	fallback journal.QName
}

// New compiles 'rules' into a classifier. 'uncategorized' is the fallback
// counterpart account for unmatched postings; leave it empty to make
// unmatched postings an error instead.
func New(rules []Rule, uncategorized string) (*Rules, error) {
	compiled := make([]Rule, len(rules))
	for i, rule := range rules {
		compiled[i] = rule
		if err := compiled[i].compile(); err != nil {
			return nil, errors.Wrapf(err, "Rule #%d", i+1)
		}
	}
	r := &Rules{rules: compiled}
	if uncategorized != "" {
		fallback, err := journal.ParseQName(uncategorized)
		if err != nil {
			return nil, err
		}
		r.fallback = fallback
	}
	return r, nil
}

// NewFromReader decodes a JSON rule list and compiles it
func NewFromReader(reader io.Reader, uncategorized string) (*Rules, error) {
	var rules []Rule
	if err := json.NewDecoder(reader).Decode(&rules); err != nil {
		return nil, errors.Wrap(err, "Error decoding rules")
	}
	return New(rules, uncategorized)
}

// Classify applies the first matching rule to 'posting'
func (r *Rules) Classify(posting journal.Posting) ([]journal.Transaction, error) {
	if posting.Amount == nil {
		return nil, errors.Errorf("Posting has no amount: %s", posting)
	}
	for _, rule := range r.rules {
		if rule.Match(posting) {
			return rule.Apply(posting)
		}
	}
	if r.fallback.Zero() {
		return nil, errors.Errorf("No rule matched for posting: %s", posting)
	}
	return r.fallbackTransactions(posting)
}

func (r *Rules) fallbackTransactions(posting journal.Posting) ([]journal.Transaction, error) {
	main := posting.WithTxnID(posting.TxnID)
	if main.Tags == nil {
		main.Tags = make(map[string]string)
	}
	main.Tags[UncategorizedTag] = "true"
	negated := main.Amount.Neg()
	balancing := journal.Posting{
		TxnID:    main.TxnID,
		Date:     main.Date,
		Account:  r.fallback,
		Amount:   &negated,
		StmtDate: main.StmtDate,
		StmtDesc: main.StmtDesc,
		Tags:     map[string]string{UncategorizedTag: "true"},
	}
	txn, err := journal.NewTransaction([]journal.Posting{main, balancing})
	if err != nil {
		return nil, err
	}
	return []journal.Transaction{txn}, nil
}

// Rules returns a copy of the compiled rule list
func (r *Rules) Rules() []Rule {
	rules := make([]Rule, len(r.rules))
	copy(rules, r.rules)
	return rules
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
