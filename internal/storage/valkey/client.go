// Package valkey keeps the shared state of a multi-node deployment in Valkey:
// scene leases, session records, viewer paths, per-scene user state, audit
// history and giveaway allocations.
package valkey

import (
	"context"
	"fmt"
	"strings"

	vk "github.com/valkey-io/valkey-go"
)

// Options selects the Valkey server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and checks the server answers.
func Connect(ctx context.Context, opts Options) (vk.Client, error) {
	client, err := vk.NewClient(vk.ClientOption{
		InitAddress: strings.Split(opts.Addr, ","),
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", opts.Addr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", opts.Addr, err)
	}
	return client, nil
}

const prefix = "scenyx:"

func key(parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

func historyRootKey(targetID string) string    { return key("history", targetID, "root") }
func historyEntriesKey(targetID string) string { return key("history", targetID, "entries") }
func sessionKey(sessionID string) string       { return key("session", sessionID) }
func actionsKey(sessionID string) string       { return key("session", sessionID, "actions") }
func pathKey(pathID string) string             { return key("path", pathID) }
func segmentsKey(pathID string) string         { return key("path", pathID, "segments") }
func userStateKey(sceneID string) string       { return key("userstate", sceneID) }
func leaseKey(sceneID string) string           { return key("lease", sceneID) }
func giveawayKey(giveawayID string) string     { return key("giveaway", giveawayID) }
func claimsKey(giveawayID string) string       { return key("giveaway", giveawayID, "claims") }
