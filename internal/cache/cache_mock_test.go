package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-state-keeper/internal/codec"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/mock"
	"github.com/MKhiriev/go-state-keeper/internal/store"
	"github.com/MKhiriev/go-state-keeper/models"
)

func TestManager_FallsBackWhenPreferredBackendFailsProbe(t *testing.T) {
	ctrl := gomock.NewController(t)
	preferred := mock.NewMockBackend(ctrl)
	preferred.EXPECT().Name().Return("flaky").AnyTimes()
	preferred.EXPECT().
		Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	chain := store.NewChain(logger.Nop(), preferred, store.NewMemoryBackend(""))
	m := NewManager(chain, codec.NewEnvelopeCodec(), 0, logger.Nop())
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, "settings", map[string]any{"x": float64(1)}, SaveOptions{}))

	got, ok, err := m.Load(ctx, "settings", LoadOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": float64(1)}, got)
}

func TestManager_BackendReadFailureSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock.NewMockBackend(ctrl)
	backend.EXPECT().Name().Return("mock").AnyTimes()

	readErr := errors.New("read failed")
	gomock.InOrder(
		// probe round-trip pins the backend
		backend.EXPECT().
			Set(gomock.Any(), gomock.Any(), "ping", gomock.Any()).
			Return(nil),
		backend.EXPECT().
			Get(gomock.Any(), gomock.Any()).
			Return(models.StoredRecord{Payload: "ping"}, true, nil),
		backend.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil),
		// the real read fails
		backend.EXPECT().
			Get(gomock.Any(), "settings").
			Return(models.StoredRecord{}, false, readErr),
	)

	chain := store.NewChain(logger.Nop(), backend)
	m := NewManager(chain, codec.NewEnvelopeCodec(), 0, logger.Nop())

	_, _, err := m.Load(context.Background(), "settings", LoadOptions{})
	assert.ErrorIs(t, err, readErr)
}
