package valkey

import (
	"context"
	"fmt"
	"strconv"
	"time"

	vk "github.com/valkey-io/valkey-go"
)

// claimScript takes the lease when it is free or already ours, and extends it.
var claimScript = vk.NewLuaScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or cur == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

// releaseScript deletes the lease only while it still names this node.
var releaseScript = vk.NewLuaScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Presence leases scenes to nodes with expiring keys.
type Presence struct {
	client vk.Client
}

func NewPresence(client vk.Client) *Presence {
	return &Presence{client: client}
}

func (p *Presence) Claim(ctx context.Context, sceneID, nodeID string, ttl time.Duration) (bool, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := claimScript.Exec(ctx, p.client, []string{leaseKey(sceneID)}, []string{nodeID, strconv.FormatInt(ms, 10)}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("claim lease %s: %w", sceneID, err)
	}
	return n == 1, nil
}

func (p *Presence) Release(ctx context.Context, sceneID, nodeID string) error {
	if err := releaseScript.Exec(ctx, p.client, []string{leaseKey(sceneID)}, []string{nodeID}).Error(); err != nil {
		return fmt.Errorf("release lease %s: %w", sceneID, err)
	}
	return nil
}
