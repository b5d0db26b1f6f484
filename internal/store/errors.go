package store

import "errors"

// Sentinel errors returned by storage backends and the fallback chain.
// Callers should use [errors.Is] to match against these values.
var (
	// ErrStorageUnavailable is returned when every backend in the fallback
	// chain failed its probe and no storage can be pinned.
	ErrStorageUnavailable = errors.New("no storage backend available")

	// ErrSnapshotNotFound is returned when a server-side query targets a
	// logical store that has no persisted snapshot.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrVersionConflict is returned when an optimistic-locking check fails:
	// the version supplied by the client is older than the version stored on
	// the server, meaning another client has pushed since this client last
	// synchronized.
	ErrVersionConflict = errors.New("snapshot version conflict occurred")
)

// Low-level database operation errors wrapped by the snapshot repository.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrScanningRow is returned when scanning column values from a result
	// row fails.
	ErrScanningRow = errors.New("failed to scan snapshot row")
)
