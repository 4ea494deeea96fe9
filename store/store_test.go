package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/brightbooks/keeper/importer"
	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/rules"
)

// memFile is an in-memory vcs.File
type memFile struct {
	data   []byte
	writes int
}

func (f *memFile) Read() ([]byte, error) {
	return f.data, nil
}

func (f *memFile) Write(b []byte) error {
	f.data = b
	f.writes++
	return nil
}

func amount(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func testStore(t *testing.T, file *memFile) *Store {
	t.Helper()
	chart := journal.NewChart(journal.WithAutoCreateParents())
	require.NoError(t, chart.Add(
		journal.Account{Name: journal.MustParseQName("Assets:Checking")},
		journal.Account{Name: journal.MustParseQName("Expenses:Food")},
		journal.Account{Name: journal.MustParseQName("Expenses:Uncategorized")},
	))
	j := journal.NewJournal(chart)
	s, err := New(j, []rules.Rule{
		{DescriptionPrefix: "GROCER", Account2: "Expenses:Food"},
	}, "Expenses:Uncategorized", file, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func addTxn(t *testing.T, s *Store, id int, date string, value string) {
	t.Helper()
	parsed, err := time.Parse(journal.DateFormat, date)
	require.NoError(t, err)
	negated := decimal.RequireFromString(value).Neg()
	err = s.Update(func(j *journal.Journal) error {
		_, err := j.AddTransactions([]journal.Transaction{mustTxn(t, []journal.Posting{
			{TxnID: id, Date: parsed, Account: journal.MustParseQName("Assets:Checking"), Amount: amount(value)},
			{TxnID: id, Date: parsed, Account: journal.MustParseQName("Expenses:Food"), Amount: &negated},
		})}, false)
		return err
	})
	require.NoError(t, err)
}

func mustTxn(t *testing.T, postings []journal.Posting) journal.Transaction {
	t.Helper()
	txn, err := journal.NewTransaction(postings)
	require.NoError(t, err)
	return txn
}

func TestUpdateSaves(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	addTxn(t, s, 1, "2024-01-02", "-12.50")
	assert.Equal(t, 1, file.writes)
	assert.Contains(t, string(file.data), `"Version": "1"`)
}

func TestUpdateErrorDoesNotSave(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	err := s.Update(func(j *journal.Journal) error {
		_, err := j.AddTransactions([]journal.Transaction{mustTxn(t, []journal.Posting{
			{TxnID: 1, Date: journal.Date(2024, time.January, 2), Account: journal.MustParseQName("Nope"), Amount: amount("-1")},
			{TxnID: 1, Date: journal.Date(2024, time.January, 2), Account: journal.MustParseQName("Expenses:Food"), Amount: amount("1")},
		})}, false)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 0, file.writes)
}

func TestRoundTrip(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	addTxn(t, s, 1, "2024-01-02", "-12.50")
	require.NoError(t, s.Update(func(j *journal.Journal) error {
		return j.AddAssertions([]journal.BalanceAssertion{{
			Date:    journal.Date(2024, time.January, 31),
			Account: journal.MustParseQName("Assets:Checking"),
			Balance: decimal.RequireFromString("-12.5"),
		}})
	}))
	require.NoError(t, s.Update(func(j *journal.Journal) error {
		return j.AddBudgetTargets([]journal.RecurringPosting{{
			Start:     journal.Date(2024, time.January, 1),
			Account:   journal.MustParseQName("Expenses:Food"),
			Amount:    decimal.RequireFromString("400"),
			Frequency: journal.Monthly,
			Interval:  1,
		}})
	}))

	loaded, err := NewFromFile(file, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = loaded.WithJournal(func(j *journal.Journal) error {
		assert.Len(t, j.Transactions(), 1)
		assert.Len(t, j.Assertions(), 1)
		assert.Len(t, j.BudgetTargets(), 1)
		assert.Equal(t, 5, j.Chart().Len())
		balance, err := j.Balance("Assets:Checking", journal.Date(2024, time.December, 31), false)
		require.NoError(t, err)
		assert.Equal(t, "-12.5", balance.String())
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, loaded.Rules(), 1)
}

func TestNewFromFileEmpty(t *testing.T) {
	s, err := NewFromFile(&memFile{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = s.WithJournal(func(j *journal.Journal) error {
		assert.Empty(t, j.Transactions())
		return nil
	})
	require.NoError(t, err)
}

func TestNewFromFileBadVersion(t *testing.T) {
	file := &memFile{data: []byte(`{"Version": "99"}`)}
	_, err := NewFromFile(file, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestImportSavesAndCounts(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	result, err := s.Import([]journal.Posting{{
		TxnID:    1,
		Date:     journal.Date(2024, time.March, 1),
		Account:  journal.MustParseQName("Assets:Checking"),
		Amount:   amount("-54.12"),
		StmtDesc: "GROCER MART",
	}}, importer.Options{Account: "Assets:Checking"})
	require.NoError(t, err)
	assert.Len(t, result.Transactions, 1)
	assert.Equal(t, 1, file.writes)

	// again: pure duplicate, but still saved
	result, err = s.Import([]journal.Posting{{
		TxnID:    1,
		Date:     journal.Date(2024, time.March, 1),
		Account:  journal.MustParseQName("Assets:Checking"),
		Amount:   amount("-54.12"),
		StmtDesc: "GROCER MART",
	}}, importer.Options{Account: "Assets:Checking"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Duplicates)
	assert.Empty(t, result.Transactions)
}

func TestCompact(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	addTxn(t, s, 10, "2024-02-05", "-1")
	addTxn(t, s, 4, "2024-01-05", "-2")

	require.NoError(t, s.Compact())
	err := s.WithJournal(func(j *journal.Journal) error {
		txns := j.Transactions()
		require.Len(t, txns, 2)
		assert.Equal(t, 1, txns[0].ID())
		assert.Equal(t, journal.Date(2024, time.January, 5), txns[0].Date())
		return nil
	})
	require.NoError(t, err)
}

func TestReplaceRules(t *testing.T) {
	file := &memFile{}
	s := testStore(t, file)
	require.NoError(t, s.ReplaceRules([]rules.Rule{
		{DescriptionPrefix: "COFFEE", Account2: "Expenses:Food"},
	}, "Expenses:Uncategorized"))
	assert.Len(t, s.Rules(), 1)
	assert.Equal(t, "COFFEE", s.Rules()[0].DescriptionPrefix)
	assert.Equal(t, 1, file.writes)

	assert.Error(t, s.ReplaceRules([]rules.Rule{{}}, ""), "invalid rules are rejected")
}
