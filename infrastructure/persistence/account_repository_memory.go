package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

// MemoryAccountRepository is the account store used when MySQL is not configured.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]model.SocialAccount // user|platform -> account
	nextID   uint
	now      func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]model.SocialAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func accountKey(userID, platform string) string { return userID + "|" + platform }

func (r *MemoryAccountRepository) Upsert(_ context.Context, account *model.SocialAccount) (*model.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountKey(account.UserID, account.Platform)
	now := r.now()
	acc := *account
	if existing, ok := r.accounts[key]; ok {
		acc.ID = existing.ID
		acc.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		acc.ID = r.nextID
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	r.accounts[key] = acc
	out := acc
	return &out, nil
}

func (r *MemoryAccountRepository) Get(_ context.Context, userID, platform string) (*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[accountKey(userID, platform)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &acc, nil
}

func (r *MemoryAccountRepository) List(_ context.Context, userID string) ([]*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*model.SocialAccount, 0)
	for _, acc := range r.accounts {
		if acc.UserID == userID {
			a := acc
			list = append(list, &a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Platform < list[j].Platform })
	return list, nil
}

func (r *MemoryAccountRepository) UpdateDisplayName(_ context.Context, userID, platform, displayName string) (*model.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := accountKey(userID, platform)
	acc, ok := r.accounts[key]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	acc.DisplayName = displayName
	acc.UpdatedAt = r.now()
	r.accounts[key] = acc
	return &acc, nil
}

var _ repository.IAccount = (*MemoryAccountRepository)(nil)
