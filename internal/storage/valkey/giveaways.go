package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	vk "github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/wallet"
)

// allocateScript adds a wallet to the claim set. -1 = already claimed,
// -2 = allocation exhausted, 1 = claimed.
var allocateScript = vk.NewLuaScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return -1
end
local limit = tonumber(ARGV[2])
if limit > 0 and redis.call('SCARD', KEYS[1]) >= limit then
  return -2
end
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// GiveawayStore keeps giveaway definitions as JSON and their claims as a set
// of checksummed wallets.
type GiveawayStore struct {
	client vk.Client
}

func NewGiveawayStore(client vk.Client) *GiveawayStore {
	return &GiveawayStore{client: client}
}

// Put stores or replaces a giveaway definition.
func (s *GiveawayStore) Put(ctx context.Context, g models.Giveaway) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode giveaway %s: %w", g.ID, err)
	}
	if err := s.client.Do(ctx, s.client.B().Set().Key(giveawayKey(g.ID)).Value(string(raw)).Build()).Error(); err != nil {
		return fmt.Errorf("write giveaway %s: %w", g.ID, err)
	}
	return nil
}

func (s *GiveawayStore) Claim(ctx context.Context, req models.ClaimRequest) (models.ClaimResult, error) {
	deny := func(reason models.ClaimRejection) (models.ClaimResult, error) {
		return models.ClaimResult{ResponseType: models.ClaimDenied, Reason: reason}, nil
	}

	addr, err := wallet.Checksum(req.Wallet)
	if err != nil {
		return deny(models.RejectNoWallet)
	}

	raw, err := s.client.Do(ctx, s.client.B().Get().Key(giveawayKey(req.GiveawayID)).Build()).ToString()
	if vk.IsValkeyNil(err) {
		return deny(models.RejectNotFound)
	}
	if err != nil {
		return models.ClaimResult{}, fmt.Errorf("read giveaway %s: %w", req.GiveawayID, err)
	}
	var g models.Giveaway
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return models.ClaimResult{}, fmt.Errorf("decode giveaway %s: %w", req.GiveawayID, err)
	}
	switch {
	case len(g.SceneIDs) > 0 && !slices.Contains(g.SceneIDs, req.SceneID):
		return deny(models.RejectNotFound)
	case g.Paused:
		return deny(models.RejectPaused)
	}

	n, err := allocateScript.Exec(ctx, s.client, []string{claimsKey(g.ID)}, []string{addr, strconv.Itoa(g.Allocation)}).AsInt64()
	if err != nil {
		return models.ClaimResult{}, fmt.Errorf("allocate giveaway %s: %w", g.ID, err)
	}
	switch n {
	case -1:
		return deny(models.RejectAlreadyClaimed)
	case -2:
		return deny(models.RejectOverLimit)
	}
	return models.ClaimResult{ResponseType: models.ClaimAccepted}, nil
}
