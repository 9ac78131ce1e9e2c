package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Vasu1712/scenyx-rooms/internal/models"
	"github.com/Vasu1712/scenyx-rooms/internal/storage"
	"github.com/Vasu1712/scenyx-rooms/internal/wallet"
	"github.com/google/uuid"
)

// UserStore resolves accounts by ID or by wallet.
type UserStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User // userID -> user
	walletIndex map[string]string       // checksummed wallet -> userID
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:       make(map[string]*models.User),
		walletIndex: make(map[string]string),
	}
}

// Put stores or replaces a user.
func (s *UserStore) Put(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(&u)
}

func (s *UserStore) putLocked(u *models.User) {
	if u.ConnectedWallet != "" {
		if addr, err := wallet.Checksum(u.ConnectedWallet); err == nil {
			u.ConnectedWallet = addr
			s.walletIndex[addr] = u.ID
		}
	}
	s.users[u.ID] = u
}

func (s *UserStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *UserStore) ObtainUserByWallet(_ context.Context, addr string, fallback *models.User) (*models.User, error) {
	normalized, err := wallet.Checksum(addr)
	if err != nil {
		return nil, fmt.Errorf("resolve wallet %q: %w", addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.walletIndex[normalized]; ok {
		c := *s.users[id]
		return &c, nil
	}

	u := &models.User{ID: uuid.NewString(), ConnectedWallet: normalized}
	if fallback != nil {
		u.DisplayName = fallback.DisplayName
		if fallback.ID != "" {
			if _, taken := s.users[fallback.ID]; !taken {
				u.ID = fallback.ID
			}
		}
	}
	s.putLocked(u)
	c := *u
	return &c, nil
}
