package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage/memory"
)

// gatedPresence holds Claim or Release calls for one scene until the matching
// gate is closed. Each held call is announced on held first.
type gatedPresence struct {
	*memory.Presence
	scene   string
	claim   chan struct{} // nil leaves Claim ungated
	release chan struct{} // nil leaves Release ungated
	held    chan string
}

func newGatedPresence(scene string) *gatedPresence {
	return &gatedPresence{Presence: memory.NewPresence(), scene: scene, held: make(chan string, 8)}
}

func (p *gatedPresence) Claim(ctx context.Context, sceneID, nodeID string, ttl time.Duration) (bool, error) {
	if sceneID == p.scene && p.claim != nil {
		p.held <- "claim"
		<-p.claim
	}
	return p.Presence.Claim(ctx, sceneID, nodeID, ttl)
}

func (p *gatedPresence) Release(ctx context.Context, sceneID, nodeID string) error {
	if sceneID == p.scene && p.release != nil {
		p.held <- "release"
		<-p.release
	}
	return p.Presence.Release(ctx, sceneID, nodeID)
}

// within fails the test when fn does not return in time.
func within(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("call blocked")
	}
}

func newManager(t *testing.T, fx *fixture, nodeID string) *Manager {
	t.Helper()
	mg := NewManager(context.Background(), fx.svc, fx.presence, nodeID, time.Minute)
	t.Cleanup(func() { mg.Shutdown(context.Background()) })
	return mg
}

func TestManagerSharesOneRoomPerScene(t *testing.T) {
	fx := newFixture(t)
	mg := newManager(t, fx, "node-a")
	ctx := context.Background()

	r1, err := mg.Join(ctx, newConn("a"), fx.host(t, "u-a", "Ada"))
	require.NoError(t, err)
	r2, err := mg.Join(ctx, newConn("b"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)

	assert.Same(t, r1, r2)
	assert.Equal(t, 1, mg.Len())
	got, ok := mg.Room("S1")
	require.True(t, ok)
	assert.Same(t, r1, got)

	snap, err := r1.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Members)
	assert.Equal(t, map[models.SessionKind]int{models.KindHost: 1, models.KindAnalytics: 1}, snap.ByKind)
}

func TestManagerDisposesRoomAfterLastLeave(t *testing.T) {
	fx := newFixture(t)
	mg := newManager(t, fx, "node-a")
	ctx := context.Background()

	r, err := mg.Join(ctx, newConn("a"), fx.host(t, "u-a", "Ada"))
	require.NoError(t, err)
	_, err = mg.Join(ctx, newConn("b"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)

	mg.Leave(ctx, r, "a")
	assert.Equal(t, 1, mg.Len())

	mg.Leave(ctx, r, "b")
	assert.Zero(t, mg.Len())
	<-r.Done()

	// the lease is free for another node
	owned, err := fx.presence.Claim(ctx, "S1", "node-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestManagerRefusesSceneOwnedElsewhere(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	owned, err := fx.presence.Claim(ctx, "S1", "node-b", time.Minute)
	require.NoError(t, err)
	require.True(t, owned)

	mg := newManager(t, fx, "node-a")
	_, err = mg.Join(ctx, newConn("a"), fx.viewer(t, "v1", ""))
	assert.ErrorIs(t, err, ErrSceneOwnedElsewhere)
	assert.Zero(t, mg.Len())
}

func TestManagerFailedJoinReleasesRoom(t *testing.T) {
	fx := newFixture(t)
	mg := newManager(t, fx, "node-a")

	_, err := mg.Join(context.Background(), newConn("a"), &models.AnalyticsSession{})
	assert.Error(t, err, "identity without a scene")
	assert.Zero(t, mg.Len())
}

func TestManagerShutdownStopsRooms(t *testing.T) {
	fx := newFixture(t)
	fx.scenes.CreateScene("S2", "Lobby", "u-a")
	mg := NewManager(context.Background(), fx.svc, fx.presence, "node-a", time.Minute)
	ctx := context.Background()

	r1, err := mg.Join(ctx, newConn("a"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)
	r2, err := mg.Join(ctx, newConn("b"), &models.AnalyticsSession{SceneID: "S2"})
	require.NoError(t, err)
	require.Equal(t, 2, mg.Len())

	mg.Shutdown(ctx)
	<-r1.Done()
	<-r2.Done()
	assert.Zero(t, mg.Len())

	owned, err := fx.presence.Claim(ctx, "S2", "node-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestManagerRenewKeepsLease(t *testing.T) {
	fx := newFixture(t)
	mg := NewManager(context.Background(), fx.svc, fx.presence, "node-a", 30*time.Millisecond)
	t.Cleanup(func() { mg.Shutdown(context.Background()) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mg.RenewLeases(ctx)

	_, err := mg.Join(context.Background(), newConn("a"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	owned, err := fx.presence.Claim(context.Background(), "S1", "node-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, owned, "lease outlived its ttl through renewal")
}

func TestManagerShutdownDisconnectsMembers(t *testing.T) {
	fx := newFixture(t)
	mg := NewManager(context.Background(), fx.svc, fx.presence, "node-a", time.Minute)
	ctx := context.Background()

	host := fx.host(t, "u-a", "Ada")
	viewer := fx.viewer(t, "v1", "")
	r, err := mg.Join(ctx, newConn("a"), host)
	require.NoError(t, err)
	_, err = mg.Join(ctx, newConn("b"), viewer)
	require.NoError(t, err)

	mg.Shutdown(ctx)
	// connection handlers still call Leave after the room is gone
	mg.Leave(ctx, r, "a")
	mg.Leave(ctx, r, "b")

	for _, id := range []string{host.SessionID, viewer.SessionID} {
		rec, ok := fx.sessions.Session(id)
		require.True(t, ok)
		assert.False(t, rec.EndedAt.IsZero(), "session %s still open", id)
	}
	assert.Equal(t, []string{"accessed scene", "left scene"}, actions(fx.history(t)))

	_, err = mg.Join(ctx, newConn("c"), fx.viewer(t, "v2", ""))
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestManagerRejoinWaitsForLeaseRelease(t *testing.T) {
	fx := newFixture(t)
	presence := newGatedPresence("S1")
	presence.release = make(chan struct{})
	mg := NewManager(context.Background(), fx.svc, presence, "node-a", time.Minute)
	t.Cleanup(func() { mg.Shutdown(context.Background()) })
	ctx := context.Background()

	old, err := mg.Join(ctx, newConn("a"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)
	left := make(chan struct{})
	go func() {
		defer close(left)
		mg.Leave(ctx, old, "a")
	}()
	require.Equal(t, "release", <-presence.held)

	next := fx.viewer(t, "v2", "")
	joined := make(chan *Room, 1)
	go func() {
		r, err := mg.Join(ctx, newConn("b"), next)
		assert.NoError(t, err)
		joined <- r
	}()
	select {
	case <-joined:
		t.Fatal("rejoin started a room while the old lease was being released")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, mg.Len())

	close(presence.release)
	<-left
	var r *Room
	select {
	case r = <-joined:
	case <-time.After(2 * time.Second):
		t.Fatal("rejoin never completed")
	}
	assert.NotSame(t, old, r)
	assert.Equal(t, 1, mg.Len())

	// the new room holds the lease
	owned, err := presence.Claim(ctx, "S1", "node-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestManagerClaimDoesNotBlockOtherScenes(t *testing.T) {
	fx := newFixture(t)
	fx.scenes.CreateScene("S2", "Lobby", "u-a")
	presence := newGatedPresence("S2")
	presence.claim = make(chan struct{})
	mg := NewManager(context.Background(), fx.svc, presence, "node-a", time.Minute)
	t.Cleanup(func() { mg.Shutdown(context.Background()) })
	ctx := context.Background()

	r1, err := mg.Join(ctx, newConn("a"), fx.viewer(t, "v1", ""))
	require.NoError(t, err)

	slow := make(chan error, 1)
	go func() {
		_, err := mg.Join(ctx, newConn("b"), &models.AnalyticsSession{SceneID: "S2"})
		slow <- err
	}()
	require.Equal(t, "claim", <-presence.held)

	other := fx.viewer(t, "v2", "")
	within(t, time.Second, func() {
		got, ok := mg.Room("S1")
		assert.True(t, ok)
		assert.Same(t, r1, got)
		assert.Equal(t, 1, mg.Len(), "a pending claim is not a running room")
		_, ok = mg.Room("S2")
		assert.False(t, ok)

		_, err := mg.Join(ctx, newConn("c"), other)
		assert.NoError(t, err)
		mg.Leave(ctx, r1, "c")
	})

	close(presence.claim)
	require.NoError(t, <-slow)
	assert.Equal(t, 2, mg.Len())
}
