package material

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrInvalidQuizPayload marks malformed or incomplete question data.
	// It is always detected before a transaction opens.
	ErrInvalidQuizPayload = errors.New("invalid quiz payload")
	// ErrInvalidFields marks material metadata that fails validation.
	ErrInvalidFields = errors.New("invalid material fields")
	// ErrNotFound covers both a missing material and one owned by someone
	// else; callers cannot tell the two apart.
	ErrNotFound = errors.New("material not found or not owned")
	// ErrConstraintViolation is a foreign-key or uniqueness failure from the store.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrUnknownQuestion is an updated question id that is not part of the
	// material's quiz.
	ErrUnknownQuestion = errors.New("question does not belong to this quiz")
	// ErrTransactionFailure wraps anything that aborted the atomic sequence.
	ErrTransactionFailure = errors.New("transaction failed")
	// ErrFileRequired is returned when a material is created without a file.
	ErrFileRequired = errors.New("file required")
)

// EditError is the single error surfaced by create, edit and delete. It
// matches both its Kind and the root cause with errors.Is.
type EditError struct {
	Op    string
	State State
	Kind  error
	Err   error
}

func (e *EditError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *EditError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func payloadError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuizPayload, fmt.Sprintf(format, args...))
}

// classify maps driver constraint errors onto ErrConstraintViolation.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, sqErr.Error())
	}
	return err
}
