package errors

import (
	"fmt"
	"strings"
)

// MigrationError describes an alteration that stopped part way.
//
// Applied lists the operations that reached physical storage before the
// failure; those are not rolled back. When Applied is non-empty, or when
// CatalogStale is set, the table's storage no longer matches its catalog
// entry and the error matches ErrMigrationPartialFailure. Otherwise nothing
// was changed and it matches ErrMigrationFailed.
type MigrationError struct {
	Table        string
	MigrationID  string
	Applied      []string
	Failed       string
	CatalogStale bool
	Err          error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration of table '%s' failed at %s: %v", e.Table, e.Failed, e.Err)
	if e.Inconsistent() {
		fmt.Fprintf(&b, " (already applied: [%s]; catalog not updated, manual reconciliation required)",
			strings.Join(e.Applied, ", "))
	}
	return b.String()
}

// Inconsistent reports whether physical storage diverged from the catalog
func (e *MigrationError) Inconsistent() bool {
	return len(e.Applied) > 0 || e.CatalogStale
}

func (e *MigrationError) Is(target error) bool {
	if e.Inconsistent() {
		return target == ErrMigrationPartialFailure
	}
	return target == ErrMigrationFailed
}

func (e *MigrationError) Unwrap() error { return e.Err }
