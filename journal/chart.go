package journal

import (
	"sort"
	"strings"
)

// MinSuffixFunc returns the minimum number of trailing segments a short name
// for 'account' must have. See ShortestUniqueName.
type MinSuffixFunc func(account Account) int

// ChartOfAccounts owns the canonical account set. It resolves both full names
// and unambiguous short names (any contiguous suffix of a name's segments),
// and enforces registration order: an account's parent must exist before the
// account is added.
//
// Not safe for concurrent mutation.
type ChartOfAccounts struct {
	accounts map[QName]*Account
	suffixes map[string][]*Account
	children map[QName]int

	autoCreateParents bool
	minSuffix         MinSuffixFunc
	order             CategoryOrder
}

// ChartOption configures a ChartOfAccounts
type ChartOption func(*ChartOfAccounts)

// WithAutoCreateParents synthesizes missing parent accounts instead of
// rejecting orphaned children
func WithAutoCreateParents() ChartOption {
	return func(c *ChartOfAccounts) {
		c.autoCreateParents = true
	}
}

// WithMinSuffixLength installs a per-account minimum short name length strategy
func WithMinSuffixLength(f MinSuffixFunc) ChartOption {
	return func(c *ChartOfAccounts) {
		c.minSuffix = f
	}
}

// WithCategoryOrder overrides the top-level category sort order
func WithCategoryOrder(order CategoryOrder) ChartOption {
	return func(c *ChartOfAccounts) {
		c.order = order
	}
}

// NewChart returns an empty chart of accounts
func NewChart(opts ...ChartOption) *ChartOfAccounts {
	c := &ChartOfAccounts{
		accounts:  make(map[QName]*Account),
		suffixes:  make(map[string][]*Account),
		children:  make(map[QName]int),
		minSuffix: func(Account) int { return 1 },
		order:     DefaultCategoryOrder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers 'accounts' in order. Either every account is added or none:
// all validation runs before the chart is touched.
func (c *ChartOfAccounts) Add(accounts ...Account) error {
	pendingSet := make(map[QName]bool, len(accounts))
	var pending []Account

	registered := func(name QName) bool {
		_, exists := c.accounts[name]
		return exists || pendingSet[name]
	}
	var stageParents func(name QName) error
	stageParents = func(name QName) error {
		parent, ok := name.Parent()
		if !ok || registered(parent) {
			return nil
		}
		if !c.autoCreateParents {
			return MissingParentError{Name: name, Parent: parent}
		}
		if err := stageParents(parent); err != nil {
			return err
		}
		pendingSet[parent] = true
		pending = append(pending, Account{Name: parent})
		return nil
	}

	for _, account := range accounts {
		if account.Name.Zero() {
			return InvalidNameError{Reason: "empty name"}
		}
		if registered(account.Name) {
			return DuplicateAccountError{Name: account.Name}
		}
		if err := stageParents(account.Name); err != nil {
			return err
		}
		pendingSet[account.Name] = true
		pending = append(pending, Account{Name: account.Name, Tags: copyTags(account.Tags)})
	}

	for i := range pending {
		c.register(&pending[i])
	}
	return nil
}

func (c *ChartOfAccounts) register(account *Account) {
	c.accounts[account.Name] = account
	segments := account.Name.Segments()
	for length := 1; length <= len(segments); length++ {
		suffix := strings.Join(segments[len(segments)-length:], Delimiter)
		c.suffixes[suffix] = append(c.suffixes[suffix], account)
	}
	if parent, ok := account.Name.Parent(); ok {
		c.children[parent]++
	}
}

// Resolve looks up 'name' as a full name first, then as a short name.
// A full name always shadows another account's identical suffix.
func (c *ChartOfAccounts) Resolve(name string) (Account, error) {
	qname, err := ParseQName(name)
	if err != nil {
		return Account{}, err
	}
	if account, exists := c.accounts[qname]; exists {
		return account.copy(), nil
	}
	matches := c.suffixes[name]
	switch len(matches) {
	case 0:
		return Account{}, UnknownAccountError{Name: name}
	case 1:
		return matches[0].copy(), nil
	default:
		names := make([]QName, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return Account{}, AmbiguousNameError{Name: name, Matches: names}
	}
}

// Contains returns true if 'name' is a registered full name
func (c *ChartOfAccounts) Contains(name QName) bool {
	_, exists := c.accounts[name]
	return exists
}

// IsLeaf returns true if no registered account descends from 'name'
func (c *ChartOfAccounts) IsLeaf(name QName) bool {
	return c.children[name] == 0
}

// ShortestUniqueName returns the shortest suffix of 'name' that resolves to
// only that account, honoring the chart's minimum suffix length strategy.
// Suffixes that collide with another account's full name are skipped, since
// Resolve would pick the full name instead. Falls back to the full name.
func (c *ChartOfAccounts) ShortestUniqueName(name QName) (string, error) {
	account, exists := c.accounts[name]
	if !exists {
		return "", UnknownAccountError{Name: name.String()}
	}
	segments := name.Segments()
	minLength := c.minSuffix(*account)
	if minLength < 1 {
		minLength = 1
	}
	for length := minLength; length < len(segments); length++ {
		suffix := strings.Join(segments[len(segments)-length:], Delimiter)
		if _, shadowed := c.accounts[QName{name: suffix}]; shadowed {
			continue
		}
		if len(c.suffixes[suffix]) == 1 {
			return suffix, nil
		}
	}
	return name.String(), nil
}

// SetTag updates one tag on a registered account
func (c *ChartOfAccounts) SetTag(name QName, key, value string) error {
	account, exists := c.accounts[name]
	if !exists {
		return UnknownAccountError{Name: name.String()}
	}
	if account.Tags == nil {
		account.Tags = make(map[string]string)
	}
	account.Tags[key] = value
	return nil
}

// Accounts returns every registered account, sorted by category order
func (c *ChartOfAccounts) Accounts() []Account {
	accounts := make([]Account, 0, len(c.accounts))
	for _, account := range c.accounts {
		accounts = append(accounts, account.copy())
	}
	sort.Slice(accounts, func(a, b int) bool {
		return c.order.Less(accounts[a].Name, accounts[b].Name)
	})
	return accounts
}

// Len returns the number of registered accounts
func (c *ChartOfAccounts) Len() int {
	return len(c.accounts)
}

func (a *Account) copy() Account {
	return Account{Name: a.Name, Tags: copyTags(a.Tags)}
}
