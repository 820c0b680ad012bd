// Package storetest provides an in-memory store.Repository for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
	"github.com/kaihuan-huang/HR-AI/internal/store"
)

var _ store.Repository = (*FakeRepo)(nil)

// FakeRepo is a concurrency-safe in-memory repository. Setting an Err field
// makes the matching method fail.
type FakeRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	turns map[string][]domain.Turn

	AppendErr error
	ListErr   error
	PingErr   error
}

// New returns an empty FakeRepo.
func New() *FakeRepo {
	return &FakeRepo{
		users: make(map[string]*domain.User),
		turns: make(map[string][]domain.Turn),
	}
}

func (f *FakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *FakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.UserID] = &cp
	return nil
}

func (f *FakeRepo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user := f.users[userID]; user != nil {
		user.LastSeenAt = lastSeen
	}
	return nil
}

func (f *FakeRepo) AppendTurn(_ context.Context, turn *domain.Turn) error {
	if f.AppendErr != nil {
		return f.AppendErr
	}
	if !turn.Role.Persistable() {
		return fmt.Errorf("role %q cannot be stored", turn.Role)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[turn.UserID] = append(f.turns[turn.UserID], *turn)
	return nil
}

func (f *FakeRepo) ListTurns(_ context.Context, userID string) ([]domain.Turn, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Turn{}, f.turns[userID]...), nil
}

func (f *FakeRepo) ListRecentTurns(_ context.Context, userID string, limit int) ([]domain.Turn, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.turns[userID]
	if limit < len(all) {
		all = all[len(all)-max(limit, 0):]
	}
	return append([]domain.Turn{}, all...), nil
}

func (f *FakeRepo) GetInactiveUsers(_ context.Context, ttl time.Duration) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*domain.User
	for _, u := range f.users {
		if u.InactiveFor(ttl, now) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *FakeRepo) DeleteUserData(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.turns[userID]))
	delete(f.turns, userID)
	delete(f.users, userID)
	return n, nil
}

func (f *FakeRepo) Ping(context.Context) error { return f.PingErr }

func (f *FakeRepo) Close() error { return nil }

// Turns returns a copy of the user's stored turns.
func (f *FakeRepo) Turns(userID string) []domain.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Turn{}, f.turns[userID]...)
}
