package liveness

import (
	"slices"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

const (
	// DebounceLimit is the largest cache that is probed in full after idle ticks.
	DebounceLimit = 4
	// IdleTicks is how many ticks a small cache waits between full probes.
	IdleTicks = 2
	// MaxStreams is the design limit; larger caches are not probed at all.
	MaxStreams = 100
	// MaxBatch is the batch size at MaxStreams.
	MaxBatch = 20
)

// SkipReason says why a tick probes nothing.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipEmpty
	SkipDebounce
	SkipOverLimit
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipEmpty:
		return "empty"
	case SkipDebounce:
		return "debounce"
	case SkipOverLimit:
		return "over-limit"
	}
	return "unknown"
}

// Tick is the outcome of one scheduling step.
type Tick struct {
	Batch     []models.StreamRecord // copies, safe to hand to another goroutine
	BatchSize int
	Skipped   SkipReason
}

// Cache is a room's ordered stream cache plus the scheduler cursor. It is owned
// by the room loop and is not safe for concurrent use.
type Cache struct {
	streams   []models.StreamRecord
	cursor    int
	batchSize int
	idleTicks int
}

// BatchSize returns how many streams to probe per tick for a cache of n streams
// in the ramp range: 1 at 5 streams rising linearly to MaxBatch at MaxStreams.
func BatchSize(n int) int {
	if n <= DebounceLimit {
		return n
	}
	if n > MaxStreams {
		return MaxBatch
	}
	return (n-DebounceLimit)*(MaxBatch-1)/(MaxStreams-DebounceLimit) + 1
}

// Plan advances the scheduler by one tick and returns the records to probe.
func (c *Cache) Plan() Tick {
	n := len(c.streams)
	switch {
	case n == 0:
		return Tick{Skipped: SkipEmpty}
	case n <= DebounceLimit:
		if c.idleTicks < IdleTicks {
			c.idleTicks++
			return Tick{Skipped: SkipDebounce}
		}
		c.batchSize = n
		c.idleTicks = 0
	case n <= MaxStreams:
		c.batchSize = BatchSize(n)
	default:
		return Tick{Skipped: SkipOverLimit}
	}

	if c.cursor >= n {
		c.cursor = 0
	}
	end := min(c.cursor+c.batchSize, n)
	batch := slices.Clone(c.streams[c.cursor:end])
	c.cursor += c.batchSize
	return Tick{Batch: batch, BatchSize: c.batchSize}
}

// Apply records a probe result for rec. The record is matched again by id, scene
// and url because the cache may have changed while the probe was in flight. It
// returns the updated record and true only when the stored status changed.
func (c *Cache) Apply(rec models.StreamRecord, status models.StreamStatus) (models.StreamRecord, bool) {
	idx := slices.IndexFunc(c.streams, func(s models.StreamRecord) bool {
		return s.ID == rec.ID && s.SceneID == rec.SceneID && s.URL == rec.URL
	})
	if idx < 0 || c.streams[idx].Status == status {
		return models.StreamRecord{}, false
	}
	c.streams[idx].Status = status
	return c.streams[idx], true
}

// Upsert inserts rec, replacing any record with the same id in the same scene.
func (c *Cache) Upsert(rec models.StreamRecord) {
	if idx := c.index(rec.ID, rec.SceneID); idx >= 0 {
		c.streams[idx] = rec
		return
	}
	c.streams = append(c.streams, rec)
}

// Find returns the record for a stream id in a scene.
func (c *Cache) Find(id, sceneID string) (models.StreamRecord, bool) {
	if idx := c.index(id, sceneID); idx >= 0 {
		return c.streams[idx], true
	}
	return models.StreamRecord{}, false
}

func (c *Cache) index(id, sceneID string) int {
	return slices.IndexFunc(c.streams, func(s models.StreamRecord) bool {
		return s.ID == id && s.SceneID == sceneID
	})
}

// RemoveURL drops every record pointing at url.
func (c *Cache) RemoveURL(url string) int {
	return c.remove(func(s models.StreamRecord) bool { return s.URL == url })
}

// RemoveScene drops every record of a scene.
func (c *Cache) RemoveScene(sceneID string) int {
	return c.remove(func(s models.StreamRecord) bool { return s.SceneID == sceneID })
}

// RemovePreset drops every record tagged with presetID.
func (c *Cache) RemovePreset(presetID string) int {
	if presetID == "" {
		return 0
	}
	return c.remove(func(s models.StreamRecord) bool { return s.PresetID == presetID })
}

// RemoveID drops the record for one stream id in a scene.
func (c *Cache) RemoveID(id, sceneID string) int {
	return c.remove(func(s models.StreamRecord) bool { return s.ID == id && s.SceneID == sceneID })
}

func (c *Cache) remove(match func(models.StreamRecord) bool) int {
	before := len(c.streams)
	c.streams = slices.DeleteFunc(c.streams, match)
	return before - len(c.streams)
}

// Len returns the number of cached records.
func (c *Cache) Len() int { return len(c.streams) }

// Records returns a copy of the cache in order.
func (c *Cache) Records() []models.StreamRecord { return slices.Clone(c.streams) }

// Cursor exposes the scheduler position for diagnostics.
func (c *Cache) Cursor() int { return c.cursor }
