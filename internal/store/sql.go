package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Options configures a SQLStore.
type Options struct {
	Table string
	// MaxIdentifierLen overrides the dialect's identifier limit when > 0.
	MaxIdentifierLen int
	MaxConns         int
}

func DefaultOptions() Options {
	return Options{
		Table:            "user_data",
		MaxIdentifierLen: DefaultMaxIdentifierLen,
		MaxConns:         4,
	}
}

// SQLStore is a ColumnStore over database/sql. Nothing is cached: every call
// reads the live schema, so changes made through other connections are seen
// immediately.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	table    string
	identLen int
	onClose  func()
	closed   atomic.Bool
}

var _ ColumnStore = (*SQLStore)(nil)

// column is one user column as stored.
type column struct {
	id   string
	name string
}

// New wraps db and creates the table if it does not exist.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts Options) (*SQLStore, error) {
	if strings.TrimSpace(opts.Table) == "" {
		opts.Table = DefaultOptions().Table
	}
	identLen := dialect.MaxIdentifierLen
	if opts.MaxIdentifierLen > 0 {
		identLen = opts.MaxIdentifierLen
	}
	if err := validateTableName(opts.Table, identLen); err != nil {
		return nil, err
	}
	s := &SQLStore{
		db:       db,
		dialect:  dialect,
		table:    opts.Table,
		identLen: identLen,
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s BIGINT PRIMARY KEY)",
		quoteIdent(s.table), quoteIdent(DateColumn))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("store: create table %s: %w", s.table, err)
	}
	return s, nil
}

// Table returns the managed table name.
func (s *SQLStore) Table() string {
	return s.table
}

// Dialect returns the backend dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) ListColumns(ctx context.Context) ([]string, error) {
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.name)
	}
	return names, nil
}

func (s *SQLStore) AddColumn(ctx context.Context, name string) (Status, error) {
	if name == "" {
		return fail(CodeEmptyName, "Cannot create column without a name!"), nil
	}
	cols, err := s.columns(ctx)
	if err != nil {
		return Status{}, err
	}
	id := s.ident(name)
	if taken(cols, id) {
		return fail(CodeAlreadyExists, "%s already exists", name), nil
	}
	if !s.dialect.Identifiers.Fits(name, s.identLen) {
		return fail(CodeNameTooLong, "%s is too long to be a column name", name), nil
	}
	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(s.table), quoteIdent(id), s.dialect.FloatType)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return Status{}, fmt.Errorf("store: add column %q: %w", name, err)
	}
	log.Debug().Str("table", s.table).Str("column", name).Str("id", id).Msg("column added")
	return ok("%s has been added", name), nil
}

func (s *SQLStore) RemoveColumn(ctx context.Context, name string) (Status, error) {
	cols, err := s.columns(ctx)
	if err != nil {
		return Status{}, err
	}
	id := s.ident(name)
	if !has(cols, id) {
		return fail(CodeNotFound, "%s is not in the table", name), nil
	}
	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(s.table), quoteIdent(id))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return Status{}, fmt.Errorf("store: drop column %q: %w", name, err)
	}
	log.Debug().Str("table", s.table).Str("column", name).Msg("column removed")
	return ok("%s has been removed", name), nil
}

func (s *SQLStore) RenameColumn(ctx context.Context, oldName, newName string) (Status, error) {
	if newName == "" {
		return fail(CodeEmptyName, "Cannot rename column to not have a name"), nil
	}
	cols, err := s.columns(ctx)
	if err != nil {
		return Status{}, err
	}
	oldID, newID := s.ident(oldName), s.ident(newName)
	if !has(cols, oldID) {
		return fail(CodeNotFound, "%s is not in the table", oldName), nil
	}
	if oldID == newID {
		return fail(CodeNoOp, "%s is the same as %s", oldName, newName), nil
	}
	if taken(cols, newID) {
		return fail(CodeAlreadyExists, "%s already exists", newName), nil
	}
	if !s.dialect.Identifiers.Fits(newName, s.identLen) {
		return fail(CodeNameTooLong, "%s is too long to be a column name", newName), nil
	}
	ddl := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		quoteIdent(s.table), quoteIdent(oldID), quoteIdent(newID))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return Status{}, fmt.Errorf("store: rename column %q: %w", oldName, err)
	}
	log.Debug().Str("table", s.table).Str("from", oldName).Str("to", newName).Msg("column renamed")
	return ok("%s has been renamed to %s", oldName, newName), nil
}

func (s *SQLStore) SetRow(ctx context.Context, day int64, values map[string]sql.NullFloat64) (Status, error) {
	if len(values) == 0 {
		return fail(CodeNoOp, "No data updates to perform"), nil
	}
	cols, err := s.columns(ctx)
	if err != nil {
		return Status{}, err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []string
	for _, name := range names {
		if !has(cols, s.ident(name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fail(CodeNotFound, "%s is not in the table", strings.Join(missing, ", ")), nil
	}

	insertCols := []string{quoteIdent(DateColumn)}
	marks := []string{s.dialect.placeholder(1)}
	updates := make([]string, 0, len(names))
	args := []any{day}
	for i, name := range names {
		q := quoteIdent(s.ident(name))
		insertCols = append(insertCols, q)
		marks = append(marks, s.dialect.placeholder(i+2))
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", q, q))
		args = append(args, values[name])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdent(s.table),
		strings.Join(insertCols, ", "),
		strings.Join(marks, ", "),
		quoteIdent(DateColumn),
		strings.Join(updates, ", "))
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return Status{}, fmt.Errorf("store: upsert day %d: %w", day, err)
	}
	return ok("Success"), nil
}

func (s *SQLStore) GetRow(ctx context.Context, day int64) ([]DataPoint, error) {
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]DataPoint, len(cols))
	if len(cols) == 0 {
		return points, nil
	}

	selected := make([]string, len(cols))
	for i, c := range cols {
		selected[i] = quoteIdent(c.id)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(selected, ", "),
		quoteIdent(s.table),
		quoteIdent(DateColumn),
		s.dialect.placeholder(1))

	vals := make([]sql.NullFloat64, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	err = s.db.QueryRowContext(ctx, query, day).Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: read day %d: %w", day, err)
	}
	for i, c := range cols {
		points[i] = DataPoint{Column: c.name, Value: vals[i].Float64, Null: !vals[i].Valid}
	}
	return points, nil
}

func (s *SQLStore) PairedSeries(ctx context.Context, x, y string) ([]Pair, Status, error) {
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, Status{}, err
	}
	xID, yID := s.ident(x), s.ident(y)
	for _, c := range []struct{ name, id string }{{x, xID}, {y, yID}} {
		if !has(cols, c.id) {
			return nil, fail(CodeNotFound, "%s is not in the table", c.name), nil
		}
	}

	qx, qy := quoteIdent(xID), quoteIdent(yID)
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL ORDER BY %s",
		qx, qy, quoteIdent(s.table), qx, qy, quoteIdent(DateColumn))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, Status{}, fmt.Errorf("store: paired series %q/%q: %w", x, y, err)
	}
	defer rows.Close()

	pairs := make([]Pair, 0)
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, Status{}, fmt.Errorf("store: scan paired series: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, Status{}, fmt.Errorf("store: paired series rows: %w", err)
	}
	return pairs, ok("Success"), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

// columns returns the user columns in ordinal order. Identifiers that do not
// decode were not created through this store and are skipped.
func (s *SQLStore) columns(ctx context.Context) ([]column, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.listColumns, s.table)
	if err != nil {
		return nil, fmt.Errorf("store: list columns of %s: %w", s.table, err)
	}
	defer rows.Close()

	cols := make([]column, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan column name: %w", err)
		}
		if id == DateColumn {
			continue
		}
		name, err := s.dialect.Identifiers.Decode(id)
		if err != nil {
			log.Warn().Str("table", s.table).Str("id", id).Msg("skipping foreign column")
			continue
		}
		cols = append(cols, column{id: id, name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list columns of %s: %w", s.table, err)
	}
	return cols, nil
}

func (s *SQLStore) ident(name string) string {
	return s.dialect.Identifiers.Encode(name)
}

func has(cols []column, id string) bool {
	for _, c := range cols {
		if c.id == id {
			return true
		}
	}
	return false
}

// taken also covers identifiers that collide with the reserved date column.
func taken(cols []column, id string) bool {
	return id == DateColumn || has(cols, id)
}
