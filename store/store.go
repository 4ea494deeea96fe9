// Package store persists a journal, its budget targets, and its import rules
// as one versioned JSON document in a version-controlled file. Every save is a
// commit, so the books carry their own history.
package store

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/brightbooks/keeper/importer"
	"github.com/brightbooks/keeper/journal"
	"github.com/brightbooks/keeper/rules"
	"github.com/brightbooks/keeper/vcs"
)

// Version is the current document format version
const Version = "1"

type document struct {
	Version       string
	Accounts      []journal.Account
	Postings      []journal.Posting
	Assertions    []journal.BalanceAssertion
	Targets       []journal.RecurringPosting
	Rules         []rules.Rule
	Uncategorized string
}

// Store owns the journal and serializes all access to it
type Store struct {
	mu            sync.RWMutex
	journal       *journal.Journal
	classifier    *rules.Rules
	customRules   []rules.Rule
	uncategorized string
	file          vcs.File

	logger        *zap.Logger
	importing     *atomic.Bool
	lastImportErr *atomic.Error
}

// New builds a store around an existing journal. 'file' receives every save.
func New(j *journal.Journal, customRules []rules.Rule, uncategorized string, file vcs.File, logger *zap.Logger) (*Store, error) {
	classifier, err := rules.New(customRules, uncategorized)
	if err != nil {
		return nil, err
	}
	return &Store{
		journal:       j,
		classifier:    classifier,
		customRules:   customRules,
		uncategorized: uncategorized,
		file:          file,
		logger:        logger,
		importing:     atomic.NewBool(false),
		lastImportErr: atomic.NewError(nil),
	}, nil
}

// NewFromFile decodes the saved document in 'file' and builds its store.
// A missing or empty file starts fresh books.
func NewFromFile(file vcs.File, logger *zap.Logger) (*Store, error) {
	data, err := file.Read()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading journal file")
	}
	if len(data) == 0 {
		return New(journal.NewJournal(nil), nil, rules.DefaultUncategorized, file, logger)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "Error decoding journal file")
	}
	if doc.Version != Version {
		return nil, errors.Errorf("Unsupported journal file version: %q", doc.Version)
	}

	txns, err := journal.TransactionsFromPostings(doc.Postings)
	if err != nil {
		return nil, err
	}
	j, err := journal.Load(nil, doc.Accounts, txns, doc.Assertions, doc.Targets)
	if err != nil {
		return nil, err
	}
	uncategorized := doc.Uncategorized
	if uncategorized == "" {
		uncategorized = rules.DefaultUncategorized
	}
	return New(j, doc.Rules, uncategorized, file, logger)
}

// WithJournal runs 'fn' with shared read access to the journal.
// 'fn' must not retain the journal or mutate it.
func (s *Store) WithJournal(fn func(j *journal.Journal) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.journal)
}

// Update runs 'fn' with exclusive access to the journal, then saves.
// Journal mutations are atomic per batch, so a failed 'fn' leaves the books
// consistent and unsaved.
func (s *Store) Update(fn func(j *journal.Journal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.journal); err != nil {
		return err
	}
	return s.save()
}

// Classifier returns the compiled rule set used for imports
func (s *Store) Classifier() *rules.Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classifier
}

// Rules returns a copy of the custom rule list
func (s *Store) Rules() []rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rulesCopy := make([]rules.Rule, len(s.customRules))
	copy(rulesCopy, s.customRules)
	return rulesCopy
}

// ReplaceRules swaps in a new custom rule list and saves
func (s *Store) ReplaceRules(customRules []rules.Rule, uncategorized string) error {
	classifier, err := rules.New(customRules, uncategorized)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier = classifier
	s.customRules = customRules
	s.uncategorized = uncategorized
	return s.save()
}

// Save validates the journal and writes the document as one commit
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	if err := s.journal.Validate(); err != nil {
		return errors.Wrap(err, "Journal is not valid")
	}
	doc := document{
		Version:       Version,
		Accounts:      s.journal.Chart().Accounts(),
		Postings:      s.journal.Postings(),
		Assertions:    s.journal.Assertions(),
		Targets:       s.journal.BudgetTargets(),
		Rules:         s.customRules,
		Uncategorized: s.uncategorized,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.file.Write(append(data, '\n'))
}

// Compact renumbers transactions into date order with no ID gaps, then saves
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.Renumber()
	return s.save()
}

// Import classifies and commits candidate postings synchronously
func (s *Store) Import(candidates []journal.Posting, opts importer.Options) (importer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := importer.Import(s.journal, candidates, s.classifier, opts)
	if err != nil {
		return result, err
	}
	return result, s.save()
}

// StartImport runs Import in the background. Only one import runs at a time.
func (s *Store) StartImport(candidates []journal.Posting, opts importer.Options) error {
	if !s.importing.CAS(false, true) {
		return errors.New("An import is already running")
	}
	go func() {
		defer s.importing.Store(false)
		result, err := s.Import(candidates, opts)
		s.lastImportErr.Store(err)
		if err != nil {
			s.logger.Error("Import failed", zap.Error(err))
			return
		}
		s.logger.Info("Import complete",
			zap.Int("candidates", result.Candidates),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("skipped", result.Skipped),
			zap.Int("discarded", result.Discarded),
			zap.Int("transactions", len(result.Transactions)),
		)
	}()
	return nil
}

// Importing reports whether a background import is running
func (s *Store) Importing() bool {
	return s.importing.Load()
}

// LastImportError returns the error from the most recent background import
func (s *Store) LastImportError() error {
	return s.lastImportErr.Load()
}
