package models

// SessionKind discriminates the two identity variants.
type SessionKind string

const (
	KindHost      SessionKind = "host"
	KindAnalytics SessionKind = "analytics"
)

// Identity is the authenticated identity attached to a transport session.
// It is a closed union: *HostSession and *AnalyticsSession are the only implementations,
// and callers switch on the concrete type.
type Identity interface {
	Kind() SessionKind
	Scene() string
	User() string
	isIdentity()
}

// HostSession is an authenticated scene editor.
type HostSession struct {
	SessionID       string `json:"sessionId"`
	SceneID         string `json:"sceneId"`
	UserID          string `json:"userId"`
	DisplayName     string `json:"displayName"`
	ConnectedWallet string `json:"connectedWallet,omitempty"`
}

func (*HostSession) Kind() SessionKind { return KindHost }
func (h *HostSession) Scene() string   { return h.SceneID }
func (h *HostSession) User() string    { return h.UserID }
func (*HostSession) isIdentity()       {}

// AnalyticsSession is a pseudonymous viewer.
type AnalyticsSession struct {
	SessionID       string   `json:"sessionId"`
	SceneID         string   `json:"sceneId"`
	World           string   `json:"world"`
	Location        Location `json:"location"`
	UserID          string   `json:"userId,omitempty"`
	DisplayName     string   `json:"displayName,omitempty"`
	ConnectedWallet string   `json:"connectedWallet,omitempty"`
	Environment     string   `json:"environment,omitempty"`
}

func (*AnalyticsSession) Kind() SessionKind { return KindAnalytics }
func (a *AnalyticsSession) Scene() string   { return a.SceneID }
func (a *AnalyticsSession) User() string    { return a.UserID }
func (*AnalyticsSession) isIdentity()       {}

// RawSession is what a credential validator hands back before it is turned into an Identity.
type RawSession struct {
	Kind            SessionKind
	SessionID       string
	UserID          string
	SceneID         string
	World           string
	Location        Location
	ConnectedWallet string
	Environment     string
}

// User is a resolved account.
type User struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	ConnectedWallet string `json:"connectedWallet,omitempty"`
}

// UserProjection is the actor summary attached to outgoing edit messages.
type UserProjection struct {
	DisplayName     string `json:"displayName"`
	ID              string `json:"id"`
	ConnectedWallet string `json:"connectedWallet,omitempty"`
}

// Project reduces an identity to the fields other editors are allowed to see.
func Project(id Identity) UserProjection {
	switch s := id.(type) {
	case *HostSession:
		return UserProjection{DisplayName: s.DisplayName, ID: s.UserID, ConnectedWallet: s.ConnectedWallet}
	case *AnalyticsSession:
		return UserProjection{DisplayName: s.DisplayName, ID: s.UserID, ConnectedWallet: s.ConnectedWallet}
	}
	return UserProjection{}
}

// AnalyticsAction is one tracked viewer action.
type AnalyticsAction struct {
	SessionID string         `json:"sessionId"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	PathPoint []float64      `json:"pathPoint,omitempty"`
	Timestamp int64          `json:"ts"`
}

// PathSegment is a batch of movement samples for a viewer path.
type PathSegment struct {
	Type   string      `json:"type"`
	Points [][]float64 `json:"path"`
}
