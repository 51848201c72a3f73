package repository

import (
	"errors"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel kinds for storage errors.
var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("store is closed")
)

// isUniqueViolation reports whether err is a SQLite unique or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
