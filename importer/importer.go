// Package importer reconciles freshly parsed bank statement postings against
// an existing journal: postings already recorded are discarded, the rest are
// classified into balanced transactions and committed with fresh IDs.
package importer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/rules"
)

// Options configures one import run
type Options struct {
	// Account is the bank account the candidate postings belong to.
	// Accepts a short name; resolved against the journal's chart.
	Account string
	// OnlyAfter drops candidates dated at or before it. Zero disables the
	// cutoff.
	OnlyAfter time.Time
	// CutoffAtLastAssertion additionally drops candidates dated at or
	// before the account's most recent balance assertion, on the grounds
	// that everything up to a verified balance is already recorded.
	CutoffAtLastAssertion bool
}

// Result reports what one import run did
type Result struct {
	// Candidates is the number of postings offered
	Candidates int
	// Duplicates were already recorded in the journal
	Duplicates int
	// Skipped fell at or before the configured cutoff date
	Skipped int
	// Discarded were matched by a discard rule
	Discarded int
	// Transactions were committed to the journal
	Transactions []journal.Transaction
}

// Import deduplicates 'candidates' against the journal, classifies the
// genuinely new postings, and commits the resulting transactions with
// sequential IDs from the journal's counter. Candidates are processed in
// order, so the assigned IDs are deterministic.
//
// Deduplication is a multiset match on each posting's dedup key: a key seen
// n times in the journal absorbs at most n candidates. Candidate account
// references are rewritten to the resolved account before keying, so short
// names in loader output still match.
func Import(j *journal.Journal, candidates []journal.Posting, classifier rules.Classifier, opts Options) (Result, error) {
	result := Result{Candidates: len(candidates)}
	if classifier == nil {
		return result, errors.New("Import requires a classifier")
	}
	account, err := j.Chart().Resolve(opts.Account)
	if err != nil {
		return result, err
	}

	cutoff := journal.Day(opts.OnlyAfter)
	if opts.CutoffAtLastAssertion {
		last, err := j.LastAssertion(account.Name.String())
		if err != nil {
			return result, err
		}
		if last != nil && last.Date.After(cutoff) {
			cutoff = last.Date
		}
	}

	known := j.KnownKeys()
	var fresh []journal.Posting
	for _, candidate := range candidates {
		if candidate.Amount == nil {
			return result, errors.Errorf("Candidate posting has no amount: %s", candidate)
		}
		candidate = candidate.WithAccount(account.Name)
		if !cutoff.IsZero() && !candidate.Date.After(cutoff) {
			result.Skipped++
			continue
		}
		key := candidate.DedupKey()
		if known[key] > 0 {
			known[key]--
			result.Duplicates++
			continue
		}
		fresh = append(fresh, candidate)
	}

	var txns []journal.Transaction
	for _, posting := range fresh {
		classified, err := classifier.Classify(posting)
		if err != nil {
			return result, errors.Wrapf(err, "Error classifying posting %s", posting)
		}
		if len(classified) == 0 {
			result.Discarded++
			continue
		}
		txns = append(txns, classified...)
	}

	committed, err := j.AddTransactions(txns, true)
	if err != nil {
		return result, err
	}
	result.Transactions = committed
	return result, nil
}
