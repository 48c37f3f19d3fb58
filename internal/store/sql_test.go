package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/correlatr/internal/codec"
	"github.com/danmuck/correlatr/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "correlatr.db")
	s, err := OpenSQLite(context.Background(), path, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func num(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func eachBackend(t *testing.T, fn func(t *testing.T, s *SQLStore)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, openTestSQLite(t))
	})
	url := os.Getenv("CORRELATR_TEST_POSTGRES_URL")
	if url == "" {
		return
	}
	t.Run("postgres", func(t *testing.T) {
		testlog.Start(t)
		opts := DefaultOptions()
		opts.Table = "correlatr_test_" + strings.ToLower(strings.NewReplacer("/", "_", "-", "_").Replace(t.Name()))
		if len(opts.Table) > DefaultMaxIdentifierLen {
			opts.Table = opts.Table[:DefaultMaxIdentifierLen]
		}
		ctx := context.Background()
		s, err := OpenPostgres(ctx, url, opts)
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(opts.Table))
			_ = s.Close()
		})
		fn(t, s)
	})
}

func TestAddColumnLifecycle(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()

		cols, err := s.ListColumns(ctx)
		require.NoError(t, err)
		assert.Empty(t, cols)

		st, err := s.AddColumn(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeOK, Message: "foo has been added"}, st)

		st, err = s.AddColumn(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, CodeAlreadyExists, st.Code)
		assert.Equal(t, "foo already exists", st.Message)

		st, err = s.AddColumn(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, CodeEmptyName, st.Code)
		assert.Equal(t, "Cannot create column without a name!", st.Message)

		cols, err = s.ListColumns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"foo"}, cols)
	})
}

func TestColumnNamesArePreservedExactly(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		names := []string{"Sleep hours", "mood; DROP TABLE x", `quote"d`, "ünïcode ☃", "foo"}
		for _, n := range names {
			st, err := s.AddColumn(ctx, n)
			require.NoError(t, err)
			require.True(t, st.OK(), st.Message)
		}
		cols, err := s.ListColumns(ctx)
		require.NoError(t, err)
		assert.Equal(t, names, cols)

		st, err := s.AddColumn(ctx, "Foo")
		require.NoError(t, err)
		assert.True(t, st.OK(), "names are case-sensitive")
	})
}

// longestFitting is the longest run of 'a' whose identifier fits s.
func longestFitting(s *SQLStore) int {
	n := 0
	for s.dialect.Identifiers.Fits(strings.Repeat("a", n+1), s.identLen) {
		n++
	}
	return n
}

func TestAddColumnTooLong(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		n := longestFitting(s)
		require.Greater(t, n, 0)
		fits := strings.Repeat("a", n)
		tooLong := strings.Repeat("a", n+1)

		st, err := s.AddColumn(ctx, fits)
		require.NoError(t, err)
		assert.True(t, st.OK(), st.Message)

		st, err = s.AddColumn(ctx, tooLong)
		require.NoError(t, err)
		assert.Equal(t, CodeNameTooLong, st.Code)
		assert.Equal(t, tooLong+" is too long to be a column name", st.Message)
	})
}

func TestIdentifierLimitPerDialect(t *testing.T) {
	s := openTestSQLite(t)
	assert.Equal(t, 35, longestFitting(s))

	pg := &SQLStore{dialect: Postgres, identLen: DefaultMaxIdentifierLen}
	assert.Equal(t, 45, longestFitting(pg))
}

func TestNamesDifferingOnlyInIdentifierCase(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		for _, n := range []string{"aaa", "aaG", "bbb"} {
			st, err := s.AddColumn(ctx, n)
			require.NoError(t, err)
			require.True(t, st.OK(), st.Message)
		}

		st, err := s.RenameColumn(ctx, "bbb", "aaG")
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeAlreadyExists, Message: "aaG already exists"}, st)

		st, err = s.RenameColumn(ctx, "bbb", "aaA")
		require.NoError(t, err)
		assert.True(t, st.OK(), st.Message)

		_, err = s.SetRow(ctx, 1, map[string]sql.NullFloat64{"aaa": num(1), "aaG": num(2), "aaA": num(3)})
		require.NoError(t, err)
		row, err := s.GetRow(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []DataPoint{
			{Column: "aaa", Value: 1},
			{Column: "aaG", Value: 2},
			{Column: "aaA", Value: 3},
		}, row)
	})
}

// openBase64SQLite runs the SQLite dialect with base64 identifiers, where
// a name can encode to the reserved date column.
func openBase64SQLite(t *testing.T) *SQLStore {
	t.Helper()
	testlog.Start(t)
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "base64.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	d := SQLite
	d.Identifiers = codec.Base64
	s, err := New(context.Background(), db, d, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReservedDateIdentifier(t *testing.T) {
	s := openBase64SQLite(t)
	ctx := context.Background()
	reserved := "\x0c\x00\xc4"
	require.Equal(t, DateColumn, codec.Base64.Encode(reserved))

	st, err := s.AddColumn(ctx, reserved)
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyExists, st.Code)

	st, err = s.RemoveColumn(ctx, reserved)
	require.NoError(t, err)
	assert.Equal(t, CodeNotFound, st.Code)

	_, err = s.AddColumn(ctx, "foo")
	require.NoError(t, err)
	st, err = s.RenameColumn(ctx, "foo", reserved)
	require.NoError(t, err)
	assert.Equal(t, CodeAlreadyExists, st.Code)
}

func TestRemoveColumn(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()

		st, err := s.RemoveColumn(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeNotFound, Message: "foo is not in the table"}, st)

		_, err = s.AddColumn(ctx, "foo")
		require.NoError(t, err)
		_, err = s.AddColumn(ctx, "bar")
		require.NoError(t, err)

		st, err = s.RemoveColumn(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeOK, Message: "foo has been removed"}, st)

		cols, err := s.ListColumns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"bar"}, cols)
	})
}

func TestRenameColumn(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		for _, n := range []string{"foo", "bar"} {
			_, err := s.AddColumn(ctx, n)
			require.NoError(t, err)
		}
		_, err := s.SetRow(ctx, 5, map[string]sql.NullFloat64{"foo": num(1.5)})
		require.NoError(t, err)

		cases := []struct {
			from, to string
			code     Code
			msg      string
		}{
			{"foo", "", CodeEmptyName, "Cannot rename column to not have a name"},
			{"missing", "x", CodeNotFound, "missing is not in the table"},
			{"foo", "foo", CodeNoOp, "foo is the same as foo"},
			{"foo", "bar", CodeAlreadyExists, "bar already exists"},
			{"foo", strings.Repeat("b", 48), CodeNameTooLong, strings.Repeat("b", 48) + " is too long to be a column name"},
			{"foo", "baz", CodeOK, "foo has been renamed to baz"},
		}
		for _, tc := range cases {
			st, err := s.RenameColumn(ctx, tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.code, st.Code, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.msg, st.Message)
		}

		cols, err := s.ListColumns(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"baz", "bar"}, cols)

		row, err := s.GetRow(ctx, 5)
		require.NoError(t, err)
		assert.Contains(t, row, DataPoint{Column: "baz", Value: 1.5})
	})
}

func TestSetRowAndGetRow(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		for _, n := range []string{"a", "b", "c"} {
			_, err := s.AddColumn(ctx, n)
			require.NoError(t, err)
		}

		row, err := s.GetRow(ctx, 19000)
		require.NoError(t, err)
		assert.Equal(t, []DataPoint{
			{Column: "a", Null: true},
			{Column: "b", Null: true},
			{Column: "c", Null: true},
		}, row, "missing day reads as all null")

		st, err := s.SetRow(ctx, 19000, map[string]sql.NullFloat64{"a": num(1), "b": num(0)})
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeOK, Message: "Success"}, st)

		st, err = s.SetRow(ctx, 19000, map[string]sql.NullFloat64{"b": {}, "c": num(-2.25)})
		require.NoError(t, err)
		require.True(t, st.OK())

		row, err = s.GetRow(ctx, 19000)
		require.NoError(t, err)
		assert.Equal(t, []DataPoint{
			{Column: "a", Value: 1},
			{Column: "b", Null: true},
			{Column: "c", Value: -2.25},
		}, row)

		st, err = s.SetRow(ctx, 19000, map[string]sql.NullFloat64{"nope": num(1)})
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeNotFound, Message: "nope is not in the table"}, st)

		st, err = s.SetRow(ctx, 19000, nil)
		require.NoError(t, err)
		assert.Equal(t, CodeNoOp, st.Code)
	})
}

func TestGetRowWithNoColumns(t *testing.T) {
	s := openTestSQLite(t)
	row, err := s.GetRow(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, row)
	assert.Empty(t, row)
}

func TestPairedSeries(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *SQLStore) {
		ctx := context.Background()
		for _, n := range []string{"x", "y"} {
			_, err := s.AddColumn(ctx, n)
			require.NoError(t, err)
		}
		rows := map[int64]map[string]sql.NullFloat64{
			3: {"x": num(3), "y": num(30)},
			1: {"x": num(1), "y": num(10)},
			2: {"x": num(2)},
			4: {"y": num(40)},
		}
		for day, vals := range rows {
			_, err := s.SetRow(ctx, day, vals)
			require.NoError(t, err)
		}

		pairs, st, err := s.PairedSeries(ctx, "x", "y")
		require.NoError(t, err)
		require.True(t, st.OK())
		assert.Equal(t, []Pair{{X: 1, Y: 10}, {X: 3, Y: 30}}, pairs)

		_, st, err = s.PairedSeries(ctx, "x", "zzz")
		require.NoError(t, err)
		assert.Equal(t, Status{Code: CodeNotFound, Message: "zzz is not in the table"}, st)
	})
}

func TestForeignColumnsAreSkipped(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `ALTER TABLE "user_data" ADD COLUMN "not base64!" REAL`)
	require.NoError(t, err)
	_, err = s.AddColumn(ctx, "foo")
	require.NoError(t, err)

	cols, err := s.ListColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, cols)
}

func TestStoreSurvivesReopen(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, path, DefaultOptions())
	require.NoError(t, err)
	_, err = s.AddColumn(ctx, "steps")
	require.NoError(t, err)
	_, err = s.SetRow(ctx, 7, map[string]sql.NullFloat64{"steps": num(9000)})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)

	s, err = OpenSQLite(ctx, path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()
	row, err := s.GetRow(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []DataPoint{{Column: "steps", Value: 9000}}, row)
}

func TestInvalidTableName(t *testing.T) {
	testlog.Start(t)
	opts := DefaultOptions()
	opts.Table = `bad"name`
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), opts)
	assert.ErrorIs(t, err, ErrInvalidTable)
}
