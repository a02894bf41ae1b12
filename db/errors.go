package db

import (
	"strings"

	"github.com/teranos/aisguard/errors"
)

// ErrDatabaseClosed is returned when the ledger is used after Close
var ErrDatabaseClosed = errors.New("database is closed")

// ErrRunNotFound is returned when a run id has no ledger row
var ErrRunNotFound = errors.New("run not found")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed, either ErrDatabaseClosed or the raw database/sql error, which the
// driver returns unwrapped.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
