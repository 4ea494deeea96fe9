package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/rules"
	"github.com/brightbooks/keeper/store"
)

type memFile struct {
	data []byte
}

func (f *memFile) Read() ([]byte, error) { return f.data, nil }
func (f *memFile) Write(b []byte) error  { f.data = b; return nil }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	chart := journal.NewChart(journal.WithAutoCreateParents())
	require.NoError(t, chart.Add(
		journal.Account{Name: journal.MustParseQName("Assets:Checking")},
		journal.Account{Name: journal.MustParseQName("Expenses:Food")},
		journal.Account{Name: journal.MustParseQName("Expenses:Uncategorized")},
	))
	j := journal.NewJournal(chart)
	negated := decimal.RequireFromString("25")
	amount := negated.Neg()
	_, err := j.AddTransactions([]journal.Transaction{
		mustTxn(t, []journal.Posting{
			{TxnID: 1, Date: journal.Date(2024, time.January, 2), Account: journal.MustParseQName("Assets:Checking"), Amount: &amount},
			{TxnID: 1, Date: journal.Date(2024, time.January, 2), Account: journal.MustParseQName("Expenses:Food"), Amount: &negated},
		}),
	}, false)
	require.NoError(t, err)
	require.NoError(t, j.AddBudgetTargets([]journal.RecurringPosting{{
		Start:     journal.Date(2024, time.January, 1),
		Account:   journal.MustParseQName("Expenses:Food"),
		Amount:    decimal.RequireFromString("400"),
		Frequency: journal.Monthly,
		Interval:  1,
	}}))

	db, err := store.New(j, []rules.Rule{
		{DescriptionPrefix: "GROCER", Account2: "Expenses:Food"},
	}, "Expenses:Uncategorized", &memFile{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return db
}

func mustTxn(t *testing.T, postings []journal.Posting) journal.Transaction {
	t.Helper()
	txn, err := journal.NewTransaction(postings)
	require.NoError(t, err)
	return txn
}

func testEngine(t *testing.T, db *store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	logger := zaptest.NewLogger(t)
	api := engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(loggerKey, logger)
	})
	setupAPI(api, db)
	return engine
}

func get(t *testing.T, engine *gin.Engine, path string) (int, map[string]interface{}) {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(recorder, request)
	var body map[string]interface{}
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder.Code, body
}

func TestVersion(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, Version, body["version"])
}

func TestGetAccounts(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/getAccounts")
	require.Equal(t, http.StatusOK, code)
	accounts := body["Accounts"].([]interface{})
	require.Len(t, accounts, 5)
	first := accounts[0].(map[string]interface{})
	assert.Equal(t, "Assets", first["Name"])
	assert.Equal(t, false, first["Leaf"])
}

func TestGetBalances(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/getBalances?end=2024-01-31")
	require.Equal(t, http.StatusOK, code)
	accounts := body["Accounts"].([]interface{})
	require.Len(t, accounts, 5)
	checking := accounts[1].(map[string]interface{})
	assert.Equal(t, "Assets:Checking", checking["Account"])
	assert.Equal(t, "-25", checking["Balance"])

	t.Run("invalid date", func(t *testing.T) {
		code, _ := get(t, engine, "/api/v1/getBalances?end=January")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("flow between dates", func(t *testing.T) {
		code, body := get(t, engine, "/api/v1/getBalances?start=2024-02-01&end=2024-02-29")
		require.Equal(t, http.StatusOK, code)
		accounts := body["Accounts"].([]interface{})
		checking := accounts[1].(map[string]interface{})
		assert.Equal(t, "0", checking["Balance"])
	})
}

func TestGetTransactions(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/getTransactions?page=1&results=10")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["Count"])
	txns := body["Transactions"].([]interface{})
	require.Len(t, txns, 1)

	t.Run("page past the end is empty", func(t *testing.T) {
		code, body := get(t, engine, "/api/v1/getTransactions?page=5&results=10")
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, body["Transactions"])
	})

	t.Run("invalid params", func(t *testing.T) {
		code, _ := get(t, engine, "/api/v1/getTransactions?page=0")
		assert.Equal(t, http.StatusBadRequest, code)
		code, _ = get(t, engine, "/api/v1/getTransactions?results=9999")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestGetFailedAssertions(t *testing.T) {
	db := testStore(t)
	require.NoError(t, db.Update(func(j *journal.Journal) error {
		return j.AddAssertions([]journal.BalanceAssertion{{
			Date:    journal.Date(2024, time.January, 31),
			Account: journal.MustParseQName("Assets:Checking"),
			Balance: decimal.RequireFromString("-20"),
		}})
	}))
	engine := testEngine(t, db)
	code, body := get(t, engine, "/api/v1/getFailedAssertions")
	require.Equal(t, http.StatusOK, code)
	failures := body["Failures"].([]interface{})
	require.Len(t, failures, 1)
	failure := failures[0].(map[string]interface{})
	assert.Equal(t, "Assets:Checking", failure["Account"])
	assert.Equal(t, "-25", failure["Actual"])
	assert.Equal(t, "5", failure["Diff"])
}

func TestGetBudget(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/getBudget?start=2024-01-01&end=2024-03-31")
	require.Equal(t, http.StatusOK, code)
	txns := body["Transactions"].([]interface{})
	assert.Len(t, txns, 3, "one per month")
}

func TestImportTransactions(t *testing.T) {
	db := testStore(t)
	engine := testEngine(t, db)

	body := `{
		"Account": "Assets:Checking",
		"Postings": [{
			"TxnID": 1,
			"Date": "2024-03-01T00:00:00Z",
			"Account": "Assets:Checking",
			"Amount": "-54.12",
			"StmtDesc": "GROCER MART"
		}]
	}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/importTransactions", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Candidates)
	assert.Equal(t, 1, resp.Transactions)

	t.Run("rate limited", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/api/v1/importTransactions", strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	})
}

func TestGetImportStatus(t *testing.T) {
	engine := testEngine(t, testStore(t))
	code, body := get(t, engine, "/api/v1/getImportStatus")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["Importing"])
}
