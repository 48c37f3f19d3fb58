package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danmuck/correlatr/internal/codec"
)

// Dialect holds the SQL that differs between backends.
type Dialect struct {
	Name      string
	FloatType string
	// MaxIdentifierLen is the backend's identifier limit; 0 means none.
	MaxIdentifierLen int
	// Identifiers encodes column names. Quoted identifiers must stay
	// distinct under the backend's comparison rules.
	Identifiers codec.Scheme

	placeholder func(n int) string
	// listColumns takes the table name as its only argument and yields
	// column names in ordinal order.
	listColumns string
}

var Postgres = Dialect{
	Name:             "postgres",
	FloatType:        "DOUBLE PRECISION",
	MaxIdentifierLen: DefaultMaxIdentifierLen,
	Identifiers:      codec.Base64,
	placeholder:      func(n int) string { return fmt.Sprintf("$%d", n) },
	listColumns: `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`,
}

// SQLite compares identifiers case-insensitively even when quoted, so base64
// names like "aaa" (YWFh) and "aaG" (YWFH) would collide.
var SQLite = Dialect{
	Name:             "sqlite",
	FloatType:        "REAL",
	MaxIdentifierLen: DefaultMaxIdentifierLen,
	Identifiers:      codec.Base32,
	placeholder:      func(int) string { return "?" },
	listColumns:      `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTableName(name string, limit int) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	if limit > 0 && len(name) > limit {
		return fmt.Errorf("%w: %q longer than %d bytes", ErrInvalidTable, name, limit)
	}
	return nil
}
