// Package store keeps the sparse time-series table: one row per day, one
// nullable float column per user column.
//
// Ownership boundary:
// - table schema (add/remove/rename column)
// - row upserts and reads
// - codec-derived identifiers; raw user names never reach SQL
//
// Validation outcomes are returned as Status values. An error return always
// means the backend failed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DateColumn is the reserved primary-key column holding the day number.
const DateColumn = "DATE"

// DefaultMaxIdentifierLen is PostgreSQL's NAMEDATALEN-1.
const DefaultMaxIdentifierLen = 63

var (
	ErrInvalidTable = errors.New("store: invalid table name")
	ErrClosed       = errors.New("store: closed")
)

// ColumnStore is the table abstraction the dispatcher works against.
type ColumnStore interface {
	ListColumns(ctx context.Context) ([]string, error)
	AddColumn(ctx context.Context, name string) (Status, error)
	RemoveColumn(ctx context.Context, name string) (Status, error)
	RenameColumn(ctx context.Context, oldName, newName string) (Status, error)
	// SetRow upserts the row for day. A value with Valid=false stores NULL;
	// columns missing from values are left untouched.
	SetRow(ctx context.Context, day int64, values map[string]sql.NullFloat64) (Status, error)
	GetRow(ctx context.Context, day int64) ([]DataPoint, error)
	PairedSeries(ctx context.Context, x, y string) ([]Pair, Status, error)
	Ping(ctx context.Context) error
	Close() error
}

// DataPoint is one column of a row. Value is meaningful only when Null is false.
type DataPoint struct {
	Column string
	Value  float64
	Null   bool
}

// Pair is one row's values for two columns, both non-null.
type Pair struct {
	X float64
	Y float64
}

type Code int

const (
	CodeOK Code = iota
	CodeEmptyName
	CodeAlreadyExists
	CodeNameTooLong
	CodeNotFound
	CodeNoOp
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeEmptyName:
		return "empty_name"
	case CodeAlreadyExists:
		return "already_exists"
	case CodeNameTooLong:
		return "name_too_long"
	case CodeNotFound:
		return "not_found"
	case CodeNoOp:
		return "no_op"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Status is the structured result of a store operation.
type Status struct {
	Code    Code
	Message string
}

func (s Status) OK() bool {
	return s.Code == CodeOK
}

func ok(format string, args ...any) Status {
	return Status{Code: CodeOK, Message: fmt.Sprintf(format, args...)}
}

func fail(code Code, format string, args ...any) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}
