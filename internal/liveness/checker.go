// Package liveness decides which embedded video streams of a scene are live.
package liveness

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// maxBodyProbe bounds how much of a playlist is read to decide it is non-empty.
const maxBodyProbe = 64 << 10

// ProbeResult is the classification of one fetch. Forbidden streams are also Down;
// the flag tells the owner to stop tracking the URL altogether.
type ProbeResult struct {
	URL       string
	Status    models.StreamStatus
	Forbidden bool
}

// Checker performs a single liveness probe. Implementations must not panic
// or fail: every outcome resolves to a status.
type Checker interface {
	Probe(ctx context.Context, url string) ProbeResult
}

// HTTPChecker probes HLS playlists over HTTP.
type HTTPChecker struct {
	Client *http.Client
	Log    *slog.Logger
}

// NewHTTPChecker returns a checker whose requests give up after timeout.
func NewHTTPChecker(timeout time.Duration, log *slog.Logger) *HTTPChecker {
	return &HTTPChecker{Client: &http.Client{Timeout: timeout}, Log: log}
}

func (c *HTTPChecker) Probe(ctx context.Context, url string) ProbeResult {
	res := ProbeResult{URL: url, Status: models.StreamDown}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.Log.Debug("Stream probe request invalid", "url", url, "error", err)
		return res
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		c.Log.Debug("Stream probe failed", "url", url, "error", err)
		return res
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyProbe))
		if n > 0 {
			res.Status = models.StreamLive
		}
	case http.StatusForbidden:
		res.Forbidden = true
	case http.StatusNotFound:
	default:
		c.Log.Info("Stream probe got non-200 status", "url", url, "status", resp.StatusCode)
	}
	return res
}
