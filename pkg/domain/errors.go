package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransaction marks failures of the underlying storage. The whole atomic
// scope was discarded and the operation is safe to retry.
var ErrTransaction = errors.New("storage transaction failed")

// ErrOutOfScope is returned when a transaction touches a collection it did not declare.
var ErrOutOfScope = errors.New("collection outside transaction scope")

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("store closed")

// ErrConfirmationRequired is returned when a destructive action was not confirmed.
var ErrConfirmationRequired = errors.New("explicit confirmation required")

// ValidationError reports caller input that is missing or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Collection Collection
	ID         string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Collection, e.ID)
}

// ImportFormatError reports a malformed backup document.
type ImportFormatError struct {
	Collection Collection
	Index      int
	Reason     string
}

func (e *ImportFormatError) Error() string {
	if e.Collection == "" {
		return "import format: " + e.Reason
	}
	if e.Index < 0 {
		return fmt.Sprintf("import format: %s: %s", e.Collection, e.Reason)
	}
	return fmt.Sprintf("import format: %s[%d]: %s", e.Collection, e.Index, e.Reason)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err carries an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
