package models

import "time"

// AuditEntry is one immutable delta in a target's change history.
type AuditEntry struct {
	ID               string    `json:"id"`
	TargetID         string    `json:"targetId"`
	RootID           string    `json:"rootId"`
	ActorUserID      string    `json:"userId"`
	ActorDisplayName string    `json:"displayName"`
	Action           string    `json:"action"`
	Element          string    `json:"element,omitempty"`
	Property         string    `json:"property,omitempty"`
	Ref              string    `json:"ref,omitempty"` // ID of the edited element, preset or setting
	Timestamp        time.Time `json:"timestamp"`
}

// AuditRoot is the full snapshot that starts a target's history chain.
type AuditRoot struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"targetId"`
	Snapshot  any       `json:"root,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
