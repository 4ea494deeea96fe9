package journal

import (
	"strings"
)

// Delimiter separates the segments of a qualified account name
const Delimiter = ":"

// QName is a qualified account name, a colon-delimited path like
// "Assets:Bank:Checking". A QName is immutable and comparable: two QNames
// are equal exactly when their string forms are equal.
type QName struct {
	name string
}

// ParseQName validates 'name' and returns its QName
func ParseQName(name string) (QName, error) {
	if name == "" {
		return QName{}, InvalidNameError{Name: name, Reason: "empty name"}
	}
	for _, segment := range strings.Split(name, Delimiter) {
		if segment == "" {
			return QName{}, InvalidNameError{Name: name, Reason: "empty segment"}
		}
	}
	return QName{name: name}, nil
}

// QNameFromSegments joins 'segments' into a QName
func QNameFromSegments(segments ...string) (QName, error) {
	if len(segments) == 0 {
		return QName{}, InvalidNameError{Reason: "no segments"}
	}
	for _, segment := range segments {
		if segment == "" {
			return QName{}, InvalidNameError{Name: strings.Join(segments, Delimiter), Reason: "empty segment"}
		}
		if strings.Contains(segment, Delimiter) {
			return QName{}, InvalidNameError{Name: strings.Join(segments, Delimiter), Reason: "segment contains delimiter"}
		}
	}
	return QName{name: strings.Join(segments, Delimiter)}, nil
}

// MustParseQName is like ParseQName but panics on invalid names.
// Only use for hard-coded names.
func MustParseQName(name string) QName {
	q, err := ParseQName(name)
	if err != nil {
		panic(err)
	}
	return q
}

func (q QName) String() string {
	return q.name
}

// Zero returns true for the zero value, which is not a valid name
func (q QName) Zero() bool {
	return q.name == ""
}

// Segments returns a copy of the name's path segments
func (q QName) Segments() []string {
	return strings.Split(q.name, Delimiter)
}

// Base returns the last segment of the name
func (q QName) Base() string {
	if i := strings.LastIndex(q.name, Delimiter); i != -1 {
		return q.name[i+1:]
	}
	return q.name
}

// Depth returns the number of segments
func (q QName) Depth() int {
	return strings.Count(q.name, Delimiter) + 1
}

// Parent returns the name minus its last segment. Returns false for
// top-level names.
func (q QName) Parent() (QName, bool) {
	i := strings.LastIndex(q.name, Delimiter)
	if i == -1 {
		return QName{}, false
	}
	return QName{name: q.name[:i]}, true
}

// IsDescendantOf returns true if q is a strict descendant of 'parent'
func (q QName) IsDescendantOf(parent QName) bool {
	return len(q.name) > len(parent.name) &&
		strings.HasPrefix(q.name, parent.name) &&
		q.name[len(parent.name)] == Delimiter[0]
}

// IsEqualOrDescendantOf returns true if q is 'other' or one of its descendants
func (q QName) IsEqualOrDescendantOf(other QName) bool {
	return q == other || q.IsDescendantOf(other)
}

// Less orders names by their segment lists, so a parent sorts immediately
// before its children
func (q QName) Less(other QName) bool {
	a, b := q.Segments(), other.Segments()
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// MarshalText encodes the name as its string form
func (q QName) MarshalText() ([]byte, error) {
	return []byte(q.name), nil
}

// UnmarshalText decodes and validates a name from its string form
func (q *QName) UnmarshalText(text []byte) error {
	parsed, err := ParseQName(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// CategoryOrder fixes the sort position of top-level account categories.
// Categories not listed sort after all listed ones, alphabetically.
type CategoryOrder []string

// DefaultCategoryOrder is the usual balance sheet then income statement ordering
var DefaultCategoryOrder = CategoryOrder{"Assets", "Liabilities", "Equity", "Revenues", "Expenses"}

func (o CategoryOrder) rank(q QName) int {
	top := q.name
	if i := strings.Index(top, Delimiter); i != -1 {
		top = top[:i]
	}
	for i, category := range o {
		if top == category {
			return i
		}
	}
	return len(o)
}

// Less orders by top-level category rank first, then by segment list
func (o CategoryOrder) Less(a, b QName) bool {
	rankA, rankB := o.rank(a), o.rank(b)
	if rankA != rankB {
		return rankA < rankB
	}
	return a.Less(b)
}
