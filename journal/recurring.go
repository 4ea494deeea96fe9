package journal

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Frequency is the repeat period of a recurring posting
type Frequency int

// Recognized frequencies. Once means no repetition: exactly one occurrence
// at the start date.
const (
	Once Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Once:    "",
	Daily:   "daily",
	Weekly:  "weekly",
	Monthly: "monthly",
	Yearly:  "yearly",
}

// ParseFrequency parses a frequency name. The empty string parses as Once.
func ParseFrequency(name string) (Frequency, error) {
	for frequency, known := range frequencyNames {
		if name == known {
			return frequency, nil
		}
	}
	return Once, errors.Errorf("Invalid frequency: '%s'", name)
}

func (f Frequency) String() string {
	return frequencyNames[f]
}

// MarshalText encodes the frequency as its name
func (f Frequency) MarshalText() ([]byte, error) {
	if _, known := frequencyNames[f]; !known {
		return nil, errors.Errorf("Invalid frequency: %d", int(f))
	}
	return []byte(frequencyNames[f]), nil
}

// UnmarshalText decodes a frequency from its name
func (f *Frequency) UnmarshalText(text []byte) error {
	parsed, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// RecurringPosting is a budget target: a posting template that expands into
// dated occurrences over a periodic rule.
type RecurringPosting struct {
	Start     time.Time
	Account   QName
	Amount    decimal.Decimal
	Comment   string
	Tags      map[string]string
	Frequency Frequency
	// Interval multiplies the frequency step, e.g. Weekly with Interval 2
	// repeats every two weeks. Required when Frequency is set.
	Interval int
	// Count and Until bound the sequence and are mutually exclusive.
	// Zero values leave the sequence unbounded.
	Count int
	Until time.Time
}

// Validate checks the recurrence rule's internal consistency
func (r RecurringPosting) Validate() error {
	if r.Start.IsZero() {
		return errors.New("Recurring posting must have a start date")
	}
	if r.Account.Zero() {
		return errors.New("Recurring posting must have an account")
	}
	if r.Frequency != Once && r.Interval < 1 {
		return errors.Errorf("Interval must be set when frequency is '%s'", r.Frequency)
	}
	if r.Count < 0 {
		return errors.Errorf("Count must not be negative: %d", r.Count)
	}
	if r.Count > 0 && !r.Until.IsZero() {
		return errors.Errorf("Count (%d) and until (%s) cannot both be set", r.Count, r.Until.Format(DateFormat))
	}
	return nil
}

func (r RecurringPosting) String() string {
	s := fmt.Sprintf("Target %s %s %s", r.Start.Format(DateFormat), r.Account, r.Amount)
	if r.Frequency != Once {
		s += " " + r.Frequency.String()
	}
	if r.Comment != "" {
		s += " " + r.Comment
	}
	return s
}

// Occurrences returns a fresh iterator over the rule's dated occurrences.
// The sequence is finite when bounded by Count or Until; otherwise callers
// stop consuming once dates pass their window of interest.
func (r RecurringPosting) Occurrences() *Occurrences {
	return &Occurrences{rule: r}
}

// Occurrences iterates a recurring posting's dates. Each call to Next steps
// the rule forward; a new iterator restarts from the beginning.
type Occurrences struct {
	rule    RecurringPosting
	steps   int
	emitted int
}

// Next returns the next occurrence date, or false when the sequence ends
func (o *Occurrences) Next() (time.Time, bool) {
	r := o.rule
	for {
		if r.Frequency == Once && o.emitted >= 1 {
			return time.Time{}, false
		}
		if r.Count > 0 && o.emitted >= r.Count {
			return time.Time{}, false
		}
		date, valid := r.occurrence(o.steps)
		o.steps++
		if !r.Until.IsZero() && date.After(r.Until) {
			return time.Time{}, false
		}
		if !valid {
			// the step lands on a day the target month doesn't have,
			// e.g. monthly from Jan 31 skips February
			continue
		}
		o.emitted++
		return date, true
	}
}

// occurrence computes the date after 'steps' repetitions. Reports false for
// steps that would normalize into the following month (Jan 31 + 1 month).
func (r RecurringPosting) occurrence(steps int) (time.Time, bool) {
	start := Day(r.Start)
	switch r.Frequency {
	case Daily:
		return start.AddDate(0, 0, steps*r.Interval), true
	case Weekly:
		return start.AddDate(0, 0, 7*steps*r.Interval), true
	case Monthly:
		date := start.AddDate(0, steps*r.Interval, 0)
		return date, date.Day() == start.Day()
	case Yearly:
		date := start.AddDate(steps*r.Interval, 0, 0)
		return date, date.Day() == start.Day()
	default:
		return start, true
	}
}

// PostingsBetween expands the rule into postings dated within [start, end]
// inclusive, assigning sequential transaction IDs from 'firstID'. The
// postings are synthetic: they are never stored in a journal.
func (r RecurringPosting) PostingsBetween(start, end time.Time, firstID int) ([]Posting, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, InvalidRangeError{Start: start, End: end}
	}
	var postings []Posting
	id := firstID
	for it := r.Occurrences(); ; {
		date, ok := it.Next()
		if !ok || date.After(end) {
			break
		}
		if date.Before(start) {
			continue
		}
		amount := r.Amount
		postings = append(postings, Posting{
			TxnID:   id,
			Date:    date,
			Account: r.Account,
			Amount:  &amount,
			Comment: r.Comment,
			Tags:    copyTags(r.Tags),
		})
		id++
	}
	return postings, nil
}
