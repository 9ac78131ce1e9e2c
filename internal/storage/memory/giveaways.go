package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/wallet"
)

// GiveawayStore allocates giveaway items, one per wallet.
type GiveawayStore struct {
	mu        sync.Mutex
	giveaways map[string]*models.Giveaway    // giveawayID -> giveaway
	claims    map[string]map[string]struct{} // giveawayID -> checksummed wallet set
}

func NewGiveawayStore() *GiveawayStore {
	return &GiveawayStore{
		giveaways: make(map[string]*models.Giveaway),
		claims:    make(map[string]map[string]struct{}),
	}
}

// Put stores or replaces a giveaway.
func (s *GiveawayStore) Put(g models.Giveaway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.giveaways[g.ID] = &g
}

func (s *GiveawayStore) Claim(_ context.Context, req models.ClaimRequest) (models.ClaimResult, error) {
	deny := func(reason models.ClaimRejection) (models.ClaimResult, error) {
		return models.ClaimResult{ResponseType: models.ClaimDenied, Reason: reason}, nil
	}

	addr, err := wallet.Checksum(req.Wallet)
	if err != nil {
		return deny(models.RejectNoWallet)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.giveaways[req.GiveawayID]
	switch {
	case !ok:
		return deny(models.RejectNotFound)
	case len(g.SceneIDs) > 0 && !slices.Contains(g.SceneIDs, req.SceneID):
		return deny(models.RejectNotFound)
	case g.Paused:
		return deny(models.RejectPaused)
	}

	claimed := s.claims[g.ID]
	if claimed == nil {
		claimed = make(map[string]struct{})
		s.claims[g.ID] = claimed
	}
	if _, dup := claimed[addr]; dup {
		return deny(models.RejectAlreadyClaimed)
	}
	if g.Allocation > 0 && len(claimed) >= g.Allocation {
		return deny(models.RejectOverLimit)
	}
	claimed[addr] = struct{}{}
	return models.ClaimResult{ResponseType: models.ClaimAccepted}, nil
}
