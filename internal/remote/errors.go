package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Category decides how a remote failure is handled.
type Category int

const (
	// Transient failures (network, timeouts, 5xx) are retried with backoff.
	Transient Category = iota
	// Authorization failures (403, row-level policy rejection) raise the
	// persistent sync error flag.
	Authorization
	// SchemaNotReady failures (missing table/column) are ignored so a lagging
	// migration does not poison later writes.
	SchemaNotReady
	// Conflict failures (duplicate id) are dropped; retrying cannot succeed.
	Conflict
)

func (c Category) String() string {
	switch c {
	case Transient:
		return "transient"
	case Authorization:
		return "authorization"
	case SchemaNotReady:
		return "schema_not_ready"
	case Conflict:
		return "conflict"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// SQLSTATE and PostgREST codes the classifier understands.
const (
	CodeInsufficientPrivilege = "42501"
	CodeUndefinedTable        = "42P01"
	CodeUndefinedColumn       = "42703"
	CodeUniqueViolation       = "23505"
	CodePostgRESTNoColumn     = "PGRST204"
	CodePostgRESTNoTable      = "PGRST205"
)

// StatusError is an HTTP-style failure with an optional backend code, as
// returned by REST gateways in front of the database.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote: HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Message)
}

// ClassifiedError wraps a store failure with its category and origin.
type ClassifiedError struct {
	Category   Category
	Op         string
	Table      string
	Code       string
	Underlying error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %v", e.Category, e.Op, e.Table, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error { return e.Underlying }

// Classify maps any store error into a Category.
func Classify(err error) Category {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return categoryFor(codeOf(err), statusOf(err))
}

// Wrap classifies err and annotates it with the operation and table. A nil
// err stays nil.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return err
	}
	code := codeOf(err)
	return &ClassifiedError{
		Category:   categoryFor(code, statusOf(err)),
		Op:         op,
		Table:      table,
		Code:       code,
		Underlying: err,
	}
}

// IsIrrecoverable reports whether retrying err is pointless.
func IsIrrecoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnfilteredDelete) {
		return true
	}
	return Classify(err) != Transient
}

func categoryFor(code string, status int) Category {
	switch code {
	case CodeInsufficientPrivilege:
		return Authorization
	case CodeUndefinedTable, CodeUndefinedColumn, CodePostgRESTNoColumn, CodePostgRESTNoTable:
		return SchemaNotReady
	case CodeUniqueViolation:
		return Conflict
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Authorization
	case http.StatusConflict:
		return Conflict
	}
	return Transient
}

func codeOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
