// Package auth turns connection credentials into session identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
)

// ErrUnauthenticated is returned for every credential that cannot be admitted.
var ErrUnauthenticated = errors.New("unauthenticated")

// Credentials are presented once per connection, and again by messages that
// re-prove the sender (session_start, giveaway_claim, user_message).
type Credentials struct {
	Token   string
	SceneID string
}

// Validator checks a credential. The user is optional and only returned when
// the credential itself carries account details.
type Validator interface {
	Validate(ctx context.Context, creds Credentials) (*models.RawSession, *models.User, error)
}

// SessionClaims is the token payload issued by the account service.
type SessionClaims struct {
	Kind        models.SessionKind `json:"kind"`
	SessionID   string             `json:"sid,omitempty"`
	SceneID     string             `json:"sceneId,omitempty"`
	DisplayName string             `json:"displayName,omitempty"`
	Wallet      string             `json:"wallet,omitempty"`
	World       string             `json:"world,omitempty"`
	Location    *models.Location   `json:"location,omitempty"`
	Environment string             `json:"env,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HMAC-signed session tokens.
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(_ context.Context, creds Credentials) (*models.RawSession, *models.User, error) {
	if creds.Token == "" {
		return nil, nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(creds.Token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	switch claims.Kind {
	case models.KindHost, models.KindAnalytics:
	default:
		return nil, nil, fmt.Errorf("%w: unknown session kind %q", ErrUnauthenticated, claims.Kind)
	}
	if claims.Subject == "" && claims.Kind == models.KindHost {
		return nil, nil, fmt.Errorf("%w: host token without subject", ErrUnauthenticated)
	}
	// A token minted for one scene cannot be replayed against another.
	if claims.SceneID != "" && creds.SceneID != "" && claims.SceneID != creds.SceneID {
		return nil, nil, fmt.Errorf("%w: token bound to another scene", ErrUnauthenticated)
	}

	raw := &models.RawSession{
		Kind:            claims.Kind,
		SessionID:       claims.SessionID,
		UserID:          claims.Subject,
		SceneID:         claims.SceneID,
		World:           claims.World,
		ConnectedWallet: claims.Wallet,
		Environment:     claims.Environment,
	}
	if claims.Location != nil {
		raw.Location = *claims.Location
	}

	var user *models.User
	if claims.DisplayName != "" || claims.Wallet != "" {
		user = &models.User{ID: claims.Subject, DisplayName: claims.DisplayName, ConnectedWallet: claims.Wallet}
	}
	return raw, user, nil
}

// Issue signs claims with the validator's secret. The account service does this
// in production; the server uses it for local tooling and tests.
func (v *JWTValidator) Issue(claims SessionClaims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
