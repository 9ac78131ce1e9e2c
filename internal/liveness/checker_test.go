package liveness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

func TestHTTPCheckerClassifies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:3\n"))
	})
	mux.HandleFunc("/empty.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/forbidden.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	mux.HandleFunc("/broken.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	checker := NewHTTPChecker(2*time.Second, logging.Discard().Liveness())
	ctx := context.Background()

	cases := []struct {
		path      string
		status    models.StreamStatus
		forbidden bool
	}{
		{"/live.m3u8", models.StreamLive, false},
		{"/empty.m3u8", models.StreamDown, false},
		{"/forbidden.m3u8", models.StreamDown, true},
		{"/missing.m3u8", models.StreamDown, false},
		{"/broken.m3u8", models.StreamDown, false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			res := checker.Probe(ctx, srv.URL+tc.path)
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.forbidden, res.Forbidden)
			assert.Equal(t, srv.URL+tc.path, res.URL)
		})
	}
}

func TestHTTPCheckerNetworkFailureIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.m3u8"
	srv.Close()

	checker := NewHTTPChecker(time.Second, logging.Discard().Liveness())
	res := checker.Probe(context.Background(), url)
	assert.Equal(t, models.StreamDown, res.Status)
	assert.False(t, res.Forbidden)

	res = checker.Probe(context.Background(), "::not a url::")
	assert.Equal(t, models.StreamDown, res.Status)
}

func TestHTTPCheckerTimeoutIsDown(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	checker := NewHTTPChecker(50*time.Millisecond, logging.Discard().Liveness())
	res := checker.Probe(context.Background(), srv.URL)
	assert.Equal(t, models.StreamDown, res.Status)
}
