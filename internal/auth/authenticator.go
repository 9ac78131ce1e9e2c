package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
)

// Authenticator admits connections. It validates the credential, persists the
// session record and returns the identity the room attaches to the member.
type Authenticator struct {
	Validator Validator
	Sessions  storage.SessionStore
	Users     storage.UserResolver
	Log       *slog.Logger
}

// Authenticate returns a *models.HostSession or a *models.AnalyticsSession.
// Any error means the connection must be closed; credential problems wrap
// ErrUnauthenticated and leave no state behind.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (models.Identity, error) {
	raw, user, err := a.Validator.Validate(ctx, creds)
	if err != nil {
		a.Log.Info("[Auth] Rejected credential", "sceneId", creds.SceneID, "error", err)
		if !errors.Is(err, ErrUnauthenticated) {
			err = fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, err
	}

	switch raw.Kind {
	case models.KindAnalytics:
		return a.connectAnalytics(ctx, raw, user, creds)
	case models.KindHost:
		if creds.SceneID == "" {
			a.Log.Info("[Auth] Rejected host without scene", "userId", raw.UserID)
			return nil, fmt.Errorf("%w: host session requires a scene id", ErrUnauthenticated)
		}
		return a.connectHost(ctx, raw, user, creds.SceneID)
	}
	return nil, fmt.Errorf("%w: unknown session kind %q", ErrUnauthenticated, raw.Kind)
}

func (a *Authenticator) connectAnalytics(ctx context.Context, raw *models.RawSession, user *models.User, creds Credentials) (*models.AnalyticsSession, error) {
	s := &models.AnalyticsSession{
		SessionID:       raw.SessionID,
		SceneID:         raw.SceneID,
		World:           raw.World,
		Location:        raw.Location,
		UserID:          raw.UserID,
		ConnectedWallet: raw.ConnectedWallet,
		Environment:     raw.Environment,
	}
	if s.SceneID == "" {
		s.SceneID = creds.SceneID
	}

	if user == nil && raw.UserID != "" {
		found, err := a.Users.GetUser(ctx, raw.UserID)
		switch {
		case err == nil:
			user = found
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("resolve analytics user %s: %w", raw.UserID, err)
		}
	}
	if user != nil {
		s.DisplayName = user.DisplayName
		if s.ConnectedWallet == "" {
			s.ConnectedWallet = user.ConnectedWallet
		}
	}

	if err := a.Sessions.StartAnalyticsSession(ctx, s); err != nil {
		return nil, fmt.Errorf("start analytics session: %w", err)
	}
	a.Log.Info("[Auth] Analytics user joined", "displayName", s.DisplayName, "world", s.World, "sceneId", s.SceneID)
	return s, nil
}

func (a *Authenticator) connectHost(ctx context.Context, raw *models.RawSession, claimed *models.User, sceneID string) (*models.HostSession, error) {
	user, err := a.Users.GetUser(ctx, raw.UserID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) || claimed == nil {
			return nil, fmt.Errorf("resolve host %s: %w", raw.UserID, err)
		}
		user = claimed
	}

	s := &models.HostSession{
		SessionID:       raw.SessionID,
		SceneID:         sceneID,
		UserID:          user.ID,
		DisplayName:     user.DisplayName,
		ConnectedWallet: user.ConnectedWallet,
	}
	if s.ConnectedWallet == "" {
		s.ConnectedWallet = raw.ConnectedWallet
	}

	if err := a.Sessions.StartHostSession(ctx, s); err != nil {
		return nil, fmt.Errorf("start host session: %w", err)
	}
	a.Log.Info("[Auth] Host joined", "displayName", s.DisplayName, "wallet", s.ConnectedWallet, "sceneId", sceneID)
	return s, nil
}

// Verify re-validates a credential without touching any store.
func (a *Authenticator) Verify(ctx context.Context, creds Credentials) (*models.RawSession, *models.User, error) {
	return a.Validator.Validate(ctx, creds)
}

// EndSession closes the session record of an identity.
func (a *Authenticator) EndSession(ctx context.Context, id models.Identity) error {
	switch s := id.(type) {
	case *models.HostSession:
		if err := a.Sessions.EndHostSession(ctx, s); err != nil {
			return fmt.Errorf("end host session %s: %w", s.SessionID, err)
		}
	case *models.AnalyticsSession:
		if err := a.Sessions.EndAnalyticsSession(ctx, s); err != nil {
			return fmt.Errorf("end analytics session %s: %w", s.SessionID, err)
		}
	default:
		return fmt.Errorf("end session: unexpected identity %T", id)
	}
	return nil
}
