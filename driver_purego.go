//go:build !cgo_sqlite

package liteorm

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)

// dataSourceName asks the driver to write time.Time values in a format its
// own reader parses back for datetime columns.
func dataSourceName(target string) string {
	if strings.Contains(target, "?") {
		return target + "&_time_format=sqlite"
	}
	return target + "?_time_format=sqlite"
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Extended result codes are enabled; the primary code is the low byte.
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
