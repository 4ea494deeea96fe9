// Package errs combines multiple errors into a single error value, for
// validation passes that should report everything wrong at once.
package errs

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Errors accumulates errors and reports them as one
type Errors []error

// ErrIf appends an error with failureMessage if the condition is true.
// Returns the condition to allow further conditional checks.
func (e *Errors) ErrIf(condition bool, failureMessage string, formatArgs ...interface{}) bool {
	if condition {
		*e = append(*e, errors.Errorf(failureMessage, formatArgs...))
	}
	return condition
}

// AddErr appends an error if it is not nil, flattening nested Errors
func (e *Errors) AddErr(err error) bool {
	if err != nil {
		if errs, ok := err.(Errors); ok {
			*e = append(*e, errs...)
		} else {
			*e = append(*e, err)
		}
	}
	return err == nil
}

// ErrOrNil returns the accumulated error, nil when empty, and the sole error
// when only one was added
func (e Errors) ErrOrNil() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

func (e Errors) Error() string {
	var buf strings.Builder
	for i, err := range e {
		if i != 0 {
			buf.WriteRune('\n')
		}
		buf.WriteString(err.Error())
	}
	return buf.String()
}

// MarshalJSON encodes each error as its own JSON object
func (e Errors) MarshalJSON() ([]byte, error) {
	descriptions := make([]interface{}, 0, len(e))
	for _, err := range e {
		switch err := err.(type) {
		case json.Marshaler:
			descriptions = append(descriptions, err)
		default:
			descriptions = append(descriptions, map[string]interface{}{"Description": err.Error()})
		}
	}
	return json.Marshal(descriptions)
}
