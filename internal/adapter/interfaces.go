package adapter

import (
	"context"

	"github.com/MKhiriev/go-state-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/server_adapter_mock.go -package=mock

// ServerAdapter is the client-side view of the sync transport: the two verbs
// of the per-store endpoint plus a cheap connectivity probe. Implementations
// must bound every call with a timeout so a dead network cannot stall the
// sync engine.
type ServerAdapter interface {
	// Pull fetches the server's current encoded snapshot for storeID.
	// ok is false when the server holds no snapshot (HTTP 204).
	Pull(ctx context.Context, storeID string) (resp models.PullResponse, ok bool, err error)

	// Push submits the client's encoded snapshot. A conflict is reported
	// in-band via the response, not as an error.
	Push(ctx context.Context, storeID string, req models.PushRequest) (models.PushResponse, error)

	// Ping probes server reachability. Used by the connectivity watcher.
	Ping(ctx context.Context) error

	// SetToken installs the bearer token attached to subsequent requests.
	SetToken(token string)
}
