package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
)

// Repository mirrors the postgres layout: one session slot per user.
type Repository struct {
	mu     sync.Mutex
	byUser map[string]domain.Session
}

func NewRepository() *Repository {
	return &Repository{byUser: map[string]domain.Session{}}
}

func (r *Repository) Replace(_ context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[s.UserID] = clone(s)
	return nil
}

func (r *Repository) Get(_ context.Context, userID, id string, now time.Time) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok || s.ID != id || s.Expired(now) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return clone(s), nil
}

// GetForUpdate is Get; the repository mutex already serialises writers.
func (r *Repository) GetForUpdate(ctx context.Context, userID, id string, now time.Time) (domain.Session, error) {
	return r.Get(ctx, userID, id, now)
}

func (r *Repository) Latest(_ context.Context, userID string, now time.Time) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok || s.Expired(now) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return clone(s), nil
}

func (r *Repository) Update(_ context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byUser[s.UserID]
	if !ok || cur.ID != s.ID {
		return domain.ErrSessionNotFound
	}
	r.byUser[s.UserID] = clone(s)
	return nil
}

func (r *Repository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok || s.ID != id {
		return domain.ErrSessionNotFound
	}
	delete(r.byUser, userID)
	return nil
}

func (r *Repository) DeleteForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; !ok {
		return 0, nil
	}
	delete(r.byUser, userID)
	return 1, nil
}

func (r *Repository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for u, s := range r.byUser {
		if s.Expired(now) {
			delete(r.byUser, u)
			n++
		}
	}
	return n, nil
}

// Count reports how many sessions are stored, expired or not.
func (r *Repository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

func clone(s domain.Session) domain.Session {
	s.Items = append([]domain.Item(nil), s.Items...)
	return s
}
