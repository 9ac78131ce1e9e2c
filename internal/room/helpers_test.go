package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-rooms/internal/audit"
	"github.com/Vasu1712/scenyx-rooms/internal/auth"
	"github.com/Vasu1712/scenyx-rooms/internal/editor"
	"github.com/Vasu1712/scenyx-rooms/internal/liveness"
	"github.com/Vasu1712/scenyx-rooms/internal/logging"
	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/memory"
)

const testSecret = "room-test-secret"

type sent struct {
	Event   string
	Payload json.RawMessage
}

// fakeConn records every event sent to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	events []sent
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, sent{Event: event, Payload: b})
	return nil
}

func (c *fakeConn) received(event string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, e := range c.events {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (c *fakeConn) count(event string) int { return len(c.received(event)) }

// fakeChecker answers probes from a table.
type fakeChecker struct {
	mu      sync.Mutex
	results map[string]liveness.ProbeResult
	calls   map[string]int
}

func newChecker() *fakeChecker {
	return &fakeChecker{results: make(map[string]liveness.ProbeResult), calls: make(map[string]int)}
}

func (f *fakeChecker) set(url string, status models.StreamStatus, forbidden bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = liveness.ProbeResult{URL: url, Status: status, Forbidden: forbidden}
}

func (f *fakeChecker) Probe(_ context.Context, url string) liveness.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if res, ok := f.results[url]; ok {
		return res
	}
	return liveness.ProbeResult{URL: url, Status: models.StreamDown}
}

func (f *fakeChecker) probed(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fixture struct {
	svc       *Services
	validator *auth.JWTValidator
	scenes    *memory.SceneStore
	sessions  *memory.SessionStore
	users     *memory.UserStore
	auditLog  *memory.AuditLog
	giveaways *memory.GiveawayStore
	presence  *memory.Presence
	checker   *fakeChecker
	scene     *models.Scene
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lg := logging.Discard()
	fx := &fixture{
		validator: auth.NewJWTValidator(testSecret),
		scenes:    memory.NewSceneStore(),
		sessions:  memory.NewSessionStore(),
		users:     memory.NewUserStore(),
		auditLog:  memory.NewAuditLog(),
		giveaways: memory.NewGiveawayStore(),
		presence:  memory.NewPresence(),
		checker:   newChecker(),
	}
	fx.scene = fx.scenes.CreateScene("S1", "Gallery", "u-a")
	recorder := audit.NewRecorder(fx.auditLog, lg.Audit())
	fx.svc = &Services{
		Auth:      &auth.Authenticator{Validator: fx.validator, Sessions: fx.sessions, Users: fx.users, Log: lg.Auth()},
		Scenes:    fx.scenes,
		UserState: fx.scenes,
		Sessions:  fx.sessions,
		Users:     fx.users,
		Giveaways: fx.giveaways,
		Editor:    &editor.Coordinator{Scenes: fx.scenes, Audit: recorder, Log: lg.Room()},
		Audit:     recorder,
		Checker:   fx.checker,
		Router:    NewRouter(lg.Room()),
		Log:       lg,

		TickInterval: 5 * time.Millisecond,
	}
	return fx
}

// startRoom runs a room directly, without the manager.
func (fx *fixture) startRoom(t *testing.T, sceneID string) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := New(sceneID, fx.svc)
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r
}

func (fx *fixture) host(t *testing.T, userID, name string) *models.HostSession {
	t.Helper()
	h := &models.HostSession{SceneID: "S1", UserID: userID, DisplayName: name}
	require.NoError(t, fx.sessions.StartHostSession(context.Background(), h))
	return h
}

func (fx *fixture) viewer(t *testing.T, userID, wallet string) *models.AnalyticsSession {
	t.Helper()
	a := &models.AnalyticsSession{SceneID: "S1", UserID: userID, ConnectedWallet: wallet, Environment: "prod"}
	require.NoError(t, fx.sessions.StartAnalyticsSession(context.Background(), a))
	return a
}

func (fx *fixture) token(t *testing.T, c auth.SessionClaims) string {
	t.Helper()
	tok, err := fx.validator.Issue(c, time.Hour)
	require.NoError(t, err)
	return tok
}

func (fx *fixture) history(t *testing.T) []models.AuditEntry {
	t.Helper()
	entries, err := fx.auditLog.Entries(context.Background(), "S1")
	require.NoError(t, err)
	return entries
}

func message(t *testing.T, typ MessageType, payload any) *Message {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := NewMessage(typ, b)
	require.NoError(t, err)
	return msg
}

func deliver(t *testing.T, r *Room, from string, typ MessageType, payload any) {
	t.Helper()
	require.NoError(t, r.Deliver(context.Background(), from, message(t, typ, payload)))
}

// settle waits until every event queued so far has been handled.
func settle(t *testing.T, r *Room) Snapshot {
	t.Helper()
	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func actions(entries []models.AuditEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func streamVideo(id, instID, url string) map[string]any {
	return map[string]any{
		"action":  "create",
		"element": "video",
		"elementData": map[string]any{
			"id":      id,
			"enabled": true,
			"instances": []map[string]any{{
				"id": instID, "enabled": true, "enableLiveStream": true, "liveSrc": url,
			}},
		},
	}
}
