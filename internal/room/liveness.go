package room

import (
	"context"
	"fmt"

	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// tick runs one scheduling step. A batch still in flight defers the step.
func (r *Room) tick(ctx context.Context) {
	if r.probing {
		return
	}
	t := r.streams.Plan()
	switch t.Skipped {
	case liveness.SkipNone:
	case liveness.SkipOverLimit:
		r.liveLog.Warn("[Liveness] Too many cached streams, skipping probe", "streams", r.streams.Len(), "limit", liveness.MaxStreams)
		return
	default:
		return
	}

	r.liveLog.Debug("[Liveness] Checking streams", "cached", r.streams.Len(), "batchSize", t.BatchSize, "batch", len(t.Batch))
	r.probing = true
	go r.probe(ctx, t.Batch)
}

// probe checks a batch sequentially off the loop and posts every result back.
func (r *Room) probe(ctx context.Context, batch []models.StreamRecord) {
	defer func() {
		select {
		case r.batchDone <- struct{}{}:
		case <-r.done:
		}
	}()
	for _, rec := range batch {
		if ctx.Err() != nil {
			return
		}
		res := r.probeOne(ctx, rec.URL)
		select {
		case r.results <- probeResult{record: rec, result: res}:
		case <-r.done:
			return
		}
	}
}

func (r *Room) probeOne(ctx context.Context, url string) (res liveness.ProbeResult) {
	defer func() {
		if p := recover(); p != nil {
			r.liveLog.Error("[Liveness] Probe panicked", "url", url, "panic", fmt.Sprint(p))
			res = liveness.ProbeResult{URL: url, Status: models.StreamDown}
		}
	}()
	return r.svc.Checker.Probe(ctx, url)
}

func (r *Room) applyProbe(p probeResult) {
	if p.result.Forbidden {
		removed := r.streams.RemoveURL(p.result.URL)
		if removed > 0 {
			r.liveLog.Warn("[Liveness] Received 403 Forbidden from stream, untracking",
				"url", p.result.URL, "removed", removed, "streams", r.streams.Records(), "members", r.members.Len())
		}
		return
	}

	updated, changed := r.streams.Apply(p.record, p.result.Status)
	if !changed {
		return
	}
	r.liveLog.Info("[Liveness] Stream state changed", "streamSceneId", updated.SceneID, "url", updated.URL, "status", updated.Status)
	r.members.DeliverToScene(updated.SceneID, EventVideoStatus, map[string]any{"id": updated.ID, "status": updated.Status})
}
