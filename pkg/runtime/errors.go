package runtime

import "errors"

var (
	// ErrNotBound is returned when a CRUD operation runs before Bind.
	ErrNotBound = errors.New("definition is not bound to storage")

	// ErrNotFound is returned for explicit call-by-name misses.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by Bind when the version recorded in
	// storage is newer than the definition's own version.
	ErrVersionConflict = errors.New("stored version is newer than definition version")

	// ErrMigrationFailed wraps a migration error propagated out of Bind. The
	// last successfully applied version remains recorded.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrReservedKey is returned when an instance identity collides with the
	// reserved metadata namespace.
	ErrReservedKey = errors.New("instance identity uses a reserved key prefix")
)
