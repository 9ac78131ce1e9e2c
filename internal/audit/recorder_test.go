package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/memory"
)

func TestRecordStartsChainWithSnapshot(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(memory.NewAuditLog(), logging.Discard().Audit())
	host := &models.HostSession{SceneID: "S1", UserID: "u1", DisplayName: "Ada"}

	_, err := rec.History(ctx, "S1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	first, err := rec.Record(ctx, host, "S1", Change{Action: "accessed scene"}, map[string]string{"id": "S1"})
	require.NoError(t, err)
	second, err := rec.Record(ctx, host, "S1", Change{Action: "create", Element: "video", Property: "preset", Ref: "el-1"}, "ignored")
	require.NoError(t, err)

	h, err := rec.History(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "S1"}, h.Root.Snapshot)
	require.Len(t, h.Entries, 2)
	assert.Equal(t, first.ID, h.Entries[0].ID)
	assert.Equal(t, second.ID, h.Entries[1].ID)
	assert.Equal(t, h.Root.ID, h.Entries[1].RootID)
	assert.True(t, h.Entries[1].Timestamp.After(h.Entries[0].Timestamp))
	assert.Equal(t, "Ada", h.Entries[1].ActorDisplayName)
	assert.Equal(t, "u1", h.Entries[1].ActorUserID)
}

func TestRecordRequiresTarget(t *testing.T) {
	rec := NewRecorder(memory.NewAuditLog(), logging.Discard().Audit())
	_, err := rec.Record(context.Background(), &models.HostSession{}, "", Change{Action: "create"}, nil)
	assert.Error(t, err)
}
