package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/memory"
)

type fixture struct {
	coord  *Coordinator
	scenes *memory.SceneStore
	log    *memory.AuditLog
	host   *models.HostSession
	scene  *models.Scene
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	scenes := memory.NewSceneStore()
	log := memory.NewAuditLog()
	scene := scenes.CreateScene("S1", "Gallery", "u1")
	lg := logging.Discard()
	return &fixture{
		coord:  &Coordinator{Scenes: scenes, Audit: audit.NewRecorder(log, lg.Audit()), Log: lg.Room()},
		scenes: scenes,
		log:    log,
		host:   &models.HostSession{SessionID: "h1", SceneID: "S1", UserID: "u1", DisplayName: "Ada", ConnectedWallet: "0xabc"},
		scene:  scene,
	}
}

func (f *fixture) entries(t *testing.T) []models.AuditEntry {
	t.Helper()
	entries, err := f.log.Entries(context.Background(), "S1")
	require.NoError(t, err)
	return entries
}

func videoWith(id string, instances ...models.SceneElementInstance) *models.SceneElement {
	return &models.SceneElement{ID: id, Kind: models.ElementVideo, Enabled: true, Instances: instances}
}

func TestCreateVideoTracksOneStream(t *testing.T) {
	f := newFixture(t)
	var streams liveness.Cache

	el := videoWith("vid-1", models.SceneElementInstance{
		ID: "inst-1", Enabled: true, EnableLiveStream: true, LiveSrc: "https://cdn.example/live.m3u8",
	})
	out, err := f.coord.Apply(context.Background(), f.host, PresetUpdate{
		Action: ActionCreate, Element: models.ElementVideo, ElementData: el,
	}, &streams)
	require.NoError(t, err)

	require.NotNil(t, out.Preset)
	assert.Equal(t, f.scene.ActivePreset, out.Preset.ID)
	require.Len(t, out.Preset.Videos, 1)
	assert.Equal(t, models.UserProjection{DisplayName: "Ada", ID: "u1", ConnectedWallet: "0xabc"}, out.User)

	require.Equal(t, 1, streams.Len())
	rec := streams.Records()[0]
	assert.Equal(t, models.StreamRecord{
		ID: "inst-1", URL: "https://cdn.example/live.m3u8", Status: models.StreamUnknown,
		SceneID: "S1", PresetID: f.scene.ActivePreset,
	}, rec)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, "video", entries[0].Element)
	assert.Equal(t, "preset", entries[0].Property)
}

func TestRetrackSkipsUnstreamableInstances(t *testing.T) {
	f := newFixture(t)
	var streams liveness.Cache
	streams.Upsert(models.StreamRecord{ID: "stale", URL: "old", SceneID: "S1", PresetID: f.scene.ActivePreset})
	streams.Upsert(models.StreamRecord{ID: "adhoc", URL: "kept", SceneID: "S1"})

	el := videoWith("vid-1",
		models.SceneElementInstance{ID: "live", Enabled: true, EnableLiveStream: true, LiveSrc: "u1"},
		models.SceneElementInstance{ID: "disabled", Enabled: false, EnableLiveStream: true, LiveSrc: "u2"},
		models.SceneElementInstance{ID: "vod", Enabled: true, EnableLiveStream: false, LiveSrc: "u3"},
		models.SceneElementInstance{ID: "nosrc", Enabled: true, EnableLiveStream: true},
	)
	out, err := f.coord.Apply(context.Background(), f.host, PresetUpdate{
		Action: ActionCreate, Element: models.ElementVideo, ElementData: el,
	}, &streams)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Tracked)

	ids := []string{}
	for _, r := range streams.Records() {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"adhoc", "live"}, ids)
}

func TestInstanceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var streams liveness.Cache

	_, err := f.coord.Apply(ctx, f.host, PresetUpdate{
		Action: ActionCreate, Element: models.ElementImage, ElementData: &models.SceneElement{ID: "img-1", Enabled: true},
	}, &streams)
	require.NoError(t, err)

	out, err := f.coord.Apply(ctx, f.host, PresetUpdate{
		Action: ActionCreate, Element: models.ElementImage, Instance: true,
		ElementData:  &models.SceneElement{ID: "img-1"},
		InstanceData: &models.SceneElementInstance{ID: "i-1", Enabled: true},
	}, &streams)
	require.NoError(t, err)
	require.Len(t, out.Preset.Images, 1)
	assert.Len(t, out.Preset.Images[0].Instances, 1)

	out, err = f.coord.Apply(ctx, f.host, PresetUpdate{
		Action: ActionUpdate, Element: models.ElementImage, Instance: true, Property: "transform", ID: "i-1",
		InstanceData: &models.SceneElementInstance{ID: "i-1", ElementID: "img-1", Name: "moved"},
	}, &streams)
	require.NoError(t, err)
	assert.Equal(t, "moved", out.Preset.Images[0].Instances[0].Name)

	out, err = f.coord.Apply(ctx, f.host, PresetUpdate{
		Action: ActionDelete, Element: models.ElementImage, Instance: true,
		ElementData:  &models.SceneElement{ID: "img-1"},
		InstanceData: &models.SceneElementInstance{ID: "i-1"},
	}, &streams)
	require.NoError(t, err)
	assert.Empty(t, out.Preset.Images[0].Instances)

	out, err = f.coord.Apply(ctx, f.host, PresetUpdate{
		Action: ActionDelete, Element: models.ElementImage, ElementData: &models.SceneElement{ID: "img-1"},
	}, &streams)
	require.NoError(t, err)
	assert.Empty(t, out.Preset.Images)

	entries := f.entries(t)
	require.Len(t, entries, 5)
	assert.Equal(t, "transform", entries[2].Property)
	assert.Equal(t, "i-1", entries[2].Ref)
	assert.Equal(t, 0, streams.Len())
}

func TestFailedUpdateWritesNoHistory(t *testing.T) {
	f := newFixture(t)
	var streams liveness.Cache

	cases := map[string]PresetUpdate{
		"unknown element":  {Action: ActionUpdate, Element: models.ElementVideo, ElementData: &models.SceneElement{ID: "ghost"}},
		"missing data":     {Action: ActionCreate, Element: models.ElementImage},
		"missing instance": {Action: ActionCreate, Element: models.ElementImage, Instance: true},
		"bad action":       {Action: "explode", Element: models.ElementImage, ElementData: &models.SceneElement{}},
		"init is outbound": {Action: ActionInit, Element: models.ElementImage, ElementData: &models.SceneElement{}},
		"foreign preset":   {Action: ActionCreate, Element: models.ElementImage, ElementData: &models.SceneElement{PresetID: "nope"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := f.coord.Apply(context.Background(), f.host, req, &streams)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
	assert.Empty(t, f.entries(t))

	_, err := f.coord.Apply(context.Background(), f.host, cases["bad action"], &streams)
	assert.True(t, errors.Is(err, ErrInvalidUpdate))
}

func TestTriggerIsRelayedUntouched(t *testing.T) {
	f := newFixture(t)
	var streams liveness.Cache

	out, err := f.coord.Apply(context.Background(), f.host, PresetUpdate{Action: ActionTrigger, Element: models.ElementSound, ID: "snd"}, &streams)
	require.NoError(t, err)
	assert.Nil(t, out.Preset)
	assert.Equal(t, "Ada", out.User.DisplayName)
	assert.Empty(t, f.entries(t))
}

func TestPresetOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var streams liveness.Cache

	added, err := f.coord.AddPreset(ctx, f.host, "Night")
	require.NoError(t, err)
	assert.Equal(t, "Night", added.Preset.Name)
	assert.Len(t, added.Scene.Presets, 2)

	cloned, err := f.coord.ClonePreset(ctx, f.host, added.Preset.ID)
	require.NoError(t, err)
	assert.NotEqual(t, added.Preset.ID, cloned.Preset.ID)

	changed, err := f.coord.ChangePreset(ctx, f.host, cloned.Preset.ID)
	require.NoError(t, err)
	assert.Equal(t, cloned.Preset.ID, changed.Scene.ActivePreset)

	streams.Upsert(models.StreamRecord{ID: "x", URL: "u", SceneID: "S1", PresetID: added.Preset.ID})
	deleted, err := f.coord.DeletePreset(ctx, f.host, added.Preset.ID, &streams)
	require.NoError(t, err)
	assert.NotContains(t, deleted.Scene.Presets, added.Preset.ID)
	assert.Equal(t, 0, streams.Len())

	_, err = f.coord.ChangePreset(ctx, f.host, "missing")
	assert.Error(t, err)

	actions := []string{}
	for _, e := range f.entries(t) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"create", "clone", "update", "deleted"}, actions)
}

func TestPutSettingAndActiveView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	setting := models.SceneSetting{ID: "mod-1", Type: models.SettingModeration, Settings: map[string]any{"banWearables": true}}

	created, user, err := f.coord.PutSetting(ctx, f.host, setting)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", user.ID)

	created, _, err = f.coord.PutSetting(ctx, f.host, setting)
	require.NoError(t, err)
	assert.False(t, created)

	scene, err := f.scenes.GetScene(ctx, "S1")
	require.NoError(t, err)
	view, moderation, err := f.coord.ActiveView(ctx, scene)
	require.NoError(t, err)
	assert.Equal(t, scene.ActivePreset, view.ID)
	require.NotNil(t, moderation)
	assert.Equal(t, "mod-1", moderation.ID)

	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, "update", entries[1].Action)
	assert.Equal(t, "setting", entries[1].Property)
}

type failingLog struct{}

func (failingLog) Append(context.Context, models.AuditEntry, any) (models.AuditEntry, error) {
	return models.AuditEntry{}, errors.New("history unavailable")
}

func (failingLog) Entries(context.Context, string) ([]models.AuditEntry, error) {
	return nil, errors.New("history unavailable")
}

func (failingLog) Root(context.Context, string) (*models.AuditRoot, error) {
	return nil, errors.New("history unavailable")
}

func TestHistoryFailureKeepsEdits(t *testing.T) {
	f := newFixture(t)
	f.coord.Audit = audit.NewRecorder(failingLog{}, logging.Discard().Audit())
	ctx := context.Background()
	var streams liveness.Cache

	out, err := f.coord.Apply(ctx, f.host, PresetUpdate{
		Action:      ActionCreate,
		Element:     models.ElementImage,
		ElementData: &models.SceneElement{ID: "img-1", Kind: models.ElementImage, Enabled: true},
	}, &streams)
	require.NoError(t, err)
	require.NotNil(t, out.Preset)
	assert.Len(t, out.Preset.Images, 1)

	change, err := f.coord.AddPreset(ctx, f.host, "Night")
	require.NoError(t, err)
	assert.Equal(t, "Night", change.Preset.Name)

	created, _, err := f.coord.PutSetting(ctx, f.host, models.SceneSetting{ID: "mod", Type: models.SettingModeration})
	require.NoError(t, err)
	assert.True(t, created)
}
