package liveness

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

func fill(c *Cache, n int, sceneID string) {
	for i := 0; i < n; i++ {
		c.Upsert(models.StreamRecord{
			ID:      fmt.Sprintf("inst-%d", i),
			URL:     fmt.Sprintf("https://cdn.example/%d.m3u8", i),
			Status:  models.StreamUnknown,
			SceneID: sceneID,
		})
	}
}

func TestBatchSizeRamp(t *testing.T) {
	assert.Equal(t, 1, BatchSize(5))
	assert.Equal(t, 10, BatchSize(52))
	assert.Equal(t, 20, BatchSize(100))

	prev := 0
	for n := 5; n <= 100; n++ {
		got := BatchSize(n)
		assert.GreaterOrEqual(t, got, prev, "ramp must not decrease at n=%d", n)
		assert.LessOrEqual(t, got, MaxBatch)
		prev = got
	}
}

func TestPlanEmptySkips(t *testing.T) {
	var c Cache
	tick := c.Plan()
	assert.Equal(t, SkipEmpty, tick.Skipped)
	assert.Empty(t, tick.Batch)
}

func TestPlanDebouncesSmallCaches(t *testing.T) {
	for n := 1; n <= DebounceLimit; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var c Cache
			fill(&c, n, "S1")

			for i := 0; i < IdleTicks; i++ {
				tick := c.Plan()
				assert.Equal(t, SkipDebounce, tick.Skipped, "tick %d", i)
				assert.Empty(t, tick.Batch)
			}

			tick := c.Plan()
			require.Equal(t, SkipNone, tick.Skipped)
			assert.Len(t, tick.Batch, n)
			assert.Equal(t, n, tick.BatchSize)

			// the debounce starts over after a full probe
			assert.Equal(t, SkipDebounce, c.Plan().Skipped)
		})
	}
}

func TestPlanRampHasNoDebounce(t *testing.T) {
	var c Cache
	fill(&c, 52, "S1")

	tick := c.Plan()
	require.Equal(t, SkipNone, tick.Skipped)
	assert.Equal(t, 10, tick.BatchSize)
	assert.Len(t, tick.Batch, 10)
	assert.Equal(t, "inst-0", tick.Batch[0].ID)
	assert.Equal(t, 10, c.Cursor())
}

func TestPlanOverLimitSkipsWithoutMovingCursor(t *testing.T) {
	var c Cache
	fill(&c, MaxStreams+1, "S1")
	c.cursor = 7

	tick := c.Plan()
	assert.Equal(t, SkipOverLimit, tick.Skipped)
	assert.Empty(t, tick.Batch)
	assert.Equal(t, 7, c.Cursor())
}

func TestPlanCursorWraps(t *testing.T) {
	var c Cache
	fill(&c, 10, "S1")
	c.cursor = 9

	tick := c.Plan()
	require.Equal(t, SkipNone, tick.Skipped)
	require.Len(t, tick.Batch, 1, "slice is clamped to the end of the cache")
	assert.Equal(t, "inst-9", tick.Batch[0].ID)

	tick = c.Plan()
	require.NotEmpty(t, tick.Batch)
	assert.Equal(t, "inst-0", tick.Batch[0].ID)
}

func TestPlanCoversEveryRecord(t *testing.T) {
	var c Cache
	fill(&c, 37, "S1")

	seen := map[string]bool{}
	for i := 0; i < 37; i++ {
		for _, rec := range c.Plan().Batch {
			seen[rec.ID] = true
		}
	}
	assert.Len(t, seen, 37)
}

func TestApplyRevalidates(t *testing.T) {
	var c Cache
	fill(&c, 3, "S1")
	rec, _ := c.Find("inst-1", "S1")

	updated, changed := c.Apply(rec, models.StreamLive)
	require.True(t, changed)
	assert.Equal(t, models.StreamLive, updated.Status)

	_, changed = c.Apply(rec, models.StreamLive)
	assert.False(t, changed, "same status is not a transition")

	c.RemoveID("inst-1", "S1")
	_, changed = c.Apply(rec, models.StreamDown)
	assert.False(t, changed, "removed while probing")

	moved := models.StreamRecord{ID: "inst-2", URL: "https://elsewhere.example/x.m3u8", SceneID: "S1"}
	_, changed = c.Apply(moved, models.StreamLive)
	assert.False(t, changed, "url changed while probing")
}

func TestUpsertKeepsOneRecordPerStream(t *testing.T) {
	var c Cache
	c.Upsert(models.StreamRecord{ID: "a", URL: "u1", SceneID: "S1", Status: models.StreamLive})
	c.Upsert(models.StreamRecord{ID: "a", URL: "u2", SceneID: "S1", Status: models.StreamUnknown})
	c.Upsert(models.StreamRecord{ID: "a", URL: "u1", SceneID: "S2"})

	require.Equal(t, 2, c.Len())
	rec, ok := c.Find("a", "S1")
	require.True(t, ok)
	assert.Equal(t, "u2", rec.URL)
}

func TestRemovals(t *testing.T) {
	var c Cache
	c.Upsert(models.StreamRecord{ID: "a", URL: "shared", SceneID: "S1", PresetID: "P1"})
	c.Upsert(models.StreamRecord{ID: "b", URL: "shared", SceneID: "S2"})
	c.Upsert(models.StreamRecord{ID: "c", URL: "other", SceneID: "S1", PresetID: "P1"})
	c.Upsert(models.StreamRecord{ID: "d", URL: "third", SceneID: "S2", PresetID: "P2"})

	assert.Equal(t, 2, c.RemoveURL("shared"))
	assert.Equal(t, 0, c.RemovePreset(""))
	assert.Equal(t, 1, c.RemovePreset("P1"))
	assert.Equal(t, 1, c.RemoveScene("S2"))
	assert.Equal(t, 0, c.Len())
}
