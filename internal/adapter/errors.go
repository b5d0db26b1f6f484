package adapter

import "errors"

var (
	// ErrNetworkFailure marks transient transport failures: connection
	// errors, timeouts, and 5xx responses. The sync engine retries these
	// with backoff.
	ErrNetworkFailure = errors.New("network failure")

	// ErrUnauthorized is returned when the server rejects the bearer token.
	ErrUnauthorized = errors.New("client unauthorized")
)
