package liteorm

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies the errors returned by this package.
type Kind int

const (
	KindOther Kind = iota
	// KindSchemaConflict: a rename target is already occupied or a rename source is missing.
	KindSchemaConflict
	// KindNonNullableMigration: migration would add a NOT NULL column without a default.
	KindNonNullableMigration
	// KindConstraintViolation: the engine rejected a write for a uniqueness or foreign key constraint.
	KindConstraintViolation
	// KindNotFound: a single-row accessor matched nothing.
	KindNotFound
	// KindInvalidSavepointOperation: a savepoint was used after its transaction ended.
	KindInvalidSavepointOperation
	// KindMissingPrimaryKey: a key-addressed operation on a mapping without a primary key.
	KindMissingPrimaryKey
	// KindTransactionActive: Begin was called while another transaction is active.
	KindTransactionActive
	// KindTransactionDone: Commit or Rollback on a finished transaction.
	KindTransactionDone
	// KindClosed: the session or pool is closed.
	KindClosed
	// KindInvalidMapping: a schema description could not be turned into a mapping.
	KindInvalidMapping
)

var kindNames = [...]string{
	KindOther:                     "error",
	KindSchemaConflict:            "schema conflict",
	KindNonNullableMigration:      "non-nullable migration",
	KindConstraintViolation:       "constraint violation",
	KindNotFound:                  "not found",
	KindInvalidSavepointOperation: "invalid savepoint operation",
	KindMissingPrimaryKey:         "missing primary key",
	KindTransactionActive:         "transaction already active",
	KindTransactionDone:           "transaction already finished",
	KindClosed:                    "closed",
	KindInvalidMapping:            "invalid mapping",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindOther]
	}
	return kindNames[k]
}

// Sentinel errors, one per Kind. Use errors.Is to test for them.
var (
	ErrSchemaConflict            = &Error{Kind: KindSchemaConflict}
	ErrNonNullableMigration      = &Error{Kind: KindNonNullableMigration}
	ErrConstraintViolation       = &Error{Kind: KindConstraintViolation}
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrInvalidSavepointOperation = &Error{Kind: KindInvalidSavepointOperation}
	ErrMissingPrimaryKey         = &Error{Kind: KindMissingPrimaryKey}
	ErrTransactionActive         = &Error{Kind: KindTransactionActive}
	ErrTransactionDone           = &Error{Kind: KindTransactionDone}
	ErrClosed                    = &Error{Kind: KindClosed}
	ErrInvalidMapping            = &Error{Kind: KindInvalidMapping}
)

// Error is the error type returned by sessions, mappings and pools.
type Error struct {
	Op    string // operation, e.g. "insert", "create table"
	Table string // table involved, if any
	Kind  Kind
	Msg   string
	Err   error // underlying engine error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("liteorm: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Table != "" {
			fmt.Fprintf(&b, " [%s]", e.Table)
		}
		b.WriteString(": ")
	}
	msg := e.Msg
	if msg == "" && (e.Kind != KindOther || e.Err == nil) {
		msg = e.Kind.String()
	}
	b.WriteString(msg)
	if e.Err != nil {
		if msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// for every not-found error regardless of its operation or table.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && e.Kind != KindOther
}

func newError(kind Kind, op, table, format string, args ...any) *Error {
	return &Error{Op: op, Table: table, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// wrapEngine wraps an error coming back from the driver, classifying
// constraint failures.
func wrapEngine(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	kind := KindOther
	if isConstraintError(err) {
		kind = KindConstraintViolation
	}
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}
