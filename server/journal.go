package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/brightbooks/keeper/budget"
	"github.com/brightbooks/keeper/importer"
	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/store"
)

// MaxResults is the maximum number of results from a paginated request
const MaxResults = 50

// AccountResponse describes one account in the chart
type AccountResponse struct {
	Name      string
	ShortName string
	Leaf      bool
	Tags      map[string]string `json:",omitempty"`
}

func getAccounts(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var accounts []AccountResponse
		err := db.WithJournal(func(j *journal.Journal) error {
			chart := j.Chart()
			for _, account := range chart.Accounts() {
				shortName, err := chart.ShortestUniqueName(account.Name)
				if err != nil {
					return err
				}
				accounts = append(accounts, AccountResponse{
					Name:      account.Name.String(),
					ShortName: shortName,
					Leaf:      chart.IsLeaf(account.Name),
					Tags:      account.Tags,
				})
			}
			return nil
		})
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"Accounts": accounts,
		})
	}
}

// BalanceResponse is the response type for fetching account balances
type BalanceResponse struct {
	Start    *time.Time `json:",omitempty"`
	End      time.Time
	Accounts []AccountBalance
}

// AccountBalance is one account's balance as of the requested date, including
// the balances of its descendants
type AccountBalance struct {
	Account string
	Balance decimal.Decimal
}

func getBalances(db *store.Store, balancesCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		end, err := dateQuery(c, "end", journal.Day(time.Now().UTC()))
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		start, err := dateQuery(c, "start", time.Time{})
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}

		cacheKey := start.Format(journal.DateFormat) + "|" + end.Format(journal.DateFormat)
		if cached, found := balancesCache.Get(cacheKey); found {
			c.JSON(http.StatusOK, cached)
			return
		}

		resp := BalanceResponse{End: end}
		if !start.IsZero() {
			resp.Start = &start
		}
		err = db.WithJournal(func(j *journal.Journal) error {
			for _, account := range j.Chart().Accounts() {
				var balance decimal.Decimal
				var err error
				if start.IsZero() {
					balance, err = j.Balance(account.Name.String(), end, false)
				} else {
					balance, err = j.Flow(account.Name.String(), start, end)
				}
				if err != nil {
					return err
				}
				resp.Accounts = append(resp.Accounts, AccountBalance{
					Account: account.Name.String(),
					Balance: balance,
				})
			}
			return nil
		})
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		balancesCache.SetDefault(cacheKey, resp)
		c.JSON(http.StatusOK, resp)
	}
}

// TransactionsResponse is a page of transactions, counted from the most recent
type TransactionsResponse struct {
	Count        int
	Page         int
	Results      int
	Transactions []journal.Transaction
}

func getTransactions(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var page, results int = 1, 10
		if pageQuery, ok := c.GetQuery("page"); ok {
			if parsedPage, err := strconv.ParseInt(pageQuery, 10, 64); err != nil {
				c.Error(errors.Errorf("Invalid integer: %s", pageQuery))
			} else if parsedPage < 1 {
				c.Error(errors.New("Page must be a positive integer"))
			} else {
				page = int(parsedPage)
			}
		}
		if resultsQuery, ok := c.GetQuery("results"); ok {
			if parsedResults, err := strconv.ParseInt(resultsQuery, 10, 64); err != nil {
				c.Error(errors.Errorf("Invalid integer: %s", resultsQuery))
			} else if parsedResults < 1 || parsedResults > MaxResults {
				c.Error(errors.Errorf("Results must be a positive integer no more than %d", MaxResults))
			} else {
				results = int(parsedResults)
			}
		}
		if len(c.Errors) > 0 {
			errMsg := ""
			for _, e := range c.Errors {
				errMsg += e.Error() + "\n"
			}
			abortWithClientError(c, http.StatusBadRequest, errors.New(errMsg))
			return
		}

		resp := TransactionsResponse{Page: page, Results: results}
		err := db.WithJournal(func(j *journal.Journal) error {
			txns := j.Transactions()
			resp.Count = len(txns)
			startIndex, endIndex := paginateFromEnd(page, results, len(txns))
			resp.Transactions = txns[startIndex:endIndex]
			return nil
		})
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// FailureResponse is one failed balance assertion
type FailureResponse struct {
	Date     time.Time
	Account  string
	Asserted decimal.Decimal
	Actual   decimal.Decimal
	Diff     decimal.Decimal
}

func getFailedAssertions(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var failures []FailureResponse
		err := db.WithJournal(func(j *journal.Journal) error {
			for _, failure := range j.FailedAssertions() {
				failures = append(failures, FailureResponse{
					Date:     failure.Assertion.Date,
					Account:  failure.Assertion.Account.String(),
					Asserted: failure.Assertion.Balance,
					Actual:   failure.Actual,
					Diff:     failure.Diff(),
				})
			}
			return nil
		})
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"Failures": failures,
		})
	}
}

// DefaultBudgetCounterpart balances generated budget postings
const DefaultBudgetCounterpart = "Equity:Budget"

func getBudget(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC()
		defaultStart := journal.Date(now.Year(), now.Month(), 1)
		start, err := dateQuery(c, "start", defaultStart)
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		end, err := dateQuery(c, "end", defaultStart.AddDate(0, 1, -1))
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		counterpart, err := journal.ParseQName(c.DefaultQuery("counterpart", DefaultBudgetCounterpart))
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}

		var txns []journal.Transaction
		err = db.WithJournal(func(j *journal.Journal) error {
			var err error
			txns, err = budget.ForJournal(j).Transactions(start, end, counterpart)
			return err
		})
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"Start":        start,
			"End":          end,
			"Transactions": txns,
		})
	}
}

func dateQuery(c *gin.Context, name string, defaultValue time.Time) (time.Time, error) {
	query, ok := c.GetQuery(name)
	if !ok {
		return defaultValue, nil
	}
	date, err := time.Parse(journal.DateFormat, query)
	if err != nil {
		return time.Time{}, errors.Errorf("Invalid date for %q: %s", name, query)
	}
	return date, nil
}

type importRequest struct {
	Account               string `binding:"required"`
	OnlyAfter             string
	CutoffAtLastAssertion bool
	Async                 bool
	Postings              []journal.Posting `binding:"required"`
}

// ImportResponse reports what an import run did
type ImportResponse struct {
	Candidates   int
	Duplicates   int
	Skipped      int
	Discarded    int
	Transactions int
}

func importTransactions(db *store.Store, balancesCache *cache.Cache, limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			abortWithClientError(c, http.StatusTooManyRequests, errors.New("Too many import requests"))
			return
		}
		var request importRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		opts := importer.Options{
			Account:               request.Account,
			CutoffAtLastAssertion: request.CutoffAtLastAssertion,
		}
		if request.OnlyAfter != "" {
			onlyAfter, err := time.Parse(journal.DateFormat, request.OnlyAfter)
			if err != nil {
				abortWithClientError(c, http.StatusBadRequest, errors.Errorf("Invalid date for OnlyAfter: %s", request.OnlyAfter))
				return
			}
			opts.OnlyAfter = onlyAfter
		}

		if request.Async {
			if err := db.StartImport(request.Postings, opts); err != nil {
				abortWithClientError(c, http.StatusConflict, err)
				return
			}
			balancesCache.Flush()
			c.Status(http.StatusAccepted)
			return
		}

		result, err := db.Import(request.Postings, opts)
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		balancesCache.Flush()
		c.JSON(http.StatusOK, ImportResponse{
			Candidates:   result.Candidates,
			Duplicates:   result.Duplicates,
			Skipped:      result.Skipped,
			Discarded:    result.Discarded,
			Transactions: len(result.Transactions),
		})
	}
}

func getImportStatus(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := map[string]interface{}{
			"Importing": db.Importing(),
		}
		if err := db.LastImportError(); err != nil {
			resp["LastError"] = err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func paginateFromEnd(page, results, size int) (start, end int) {
	if size == 0 {
		return
	}
	start = maxInt(size-page*results, 0)
	end = maxInt(minInt(size-(page-1)*results, size), 0)
	return
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
