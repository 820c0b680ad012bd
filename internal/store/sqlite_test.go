package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaihuan-huang/HR-AI/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.UpsertUser(ctx, &domain.User{
		UserID: "u1", Username: "anon-u1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "anon-u1", got.Username)
	assert.True(t, got.LastSeenAt.Equal(now))

	later := now.Add(time.Hour)
	require.NoError(t, s.UpdateLastSeen(ctx, "u1", later))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.Equal(later))
}

func TestAppendAndListTurnsPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Identical timestamps still order by insertion.
	ts := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 7; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		turn := &domain.Turn{UserID: "u1", Role: role, Content: fmt.Sprintf("m%d", i), CreatedAt: ts}
		require.NoError(t, s.AppendTurn(ctx, turn))
		assert.NotEmpty(t, turn.ID)
	}
	require.NoError(t, s.AppendTurn(ctx, &domain.Turn{UserID: "u2", Role: domain.RoleUser, Content: "other"}))

	all, err := s.ListTurns(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 7)
	for i, turn := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), turn.Content)
		assert.True(t, turn.CreatedAt.Equal(ts))
	}

	recent, err := s.ListRecentTurns(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, "m2", recent[0].Content)
	assert.Equal(t, "m6", recent[4].Content)

	none, err := s.ListRecentTurns(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := s.ListTurns(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestAppendTurnRejectsSystemRole(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendTurn(context.Background(), &domain.Turn{UserID: "u1", Role: domain.RoleSystem, Content: "x"})
	require.Error(t, err)
}

func TestInactiveUsersAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-48 * time.Hour)
	require.NoError(t, s.UpsertUser(ctx, &domain.User{UserID: "stale", Username: "s", LastSeenAt: old, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, s.UpsertUser(ctx, &domain.User{UserID: "fresh", Username: "f", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.AppendTurn(ctx, &domain.Turn{UserID: "stale", Role: domain.RoleUser, Content: "hello"}))
	require.NoError(t, s.AppendTurn(ctx, &domain.Turn{UserID: "stale", Role: domain.RoleAssistant, Content: "hi"}))
	require.NoError(t, s.AppendTurn(ctx, &domain.Turn{UserID: "fresh", Role: domain.RoleUser, Content: "keep"}))

	inactive, err := s.GetInactiveUsers(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "stale", inactive[0].UserID)

	removed, err := s.DeleteUserData(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	user, err := s.GetUser(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, user)

	kept, err := s.ListTurns(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendTurn(ctx, &domain.Turn{UserID: "u1", Role: domain.RoleUser, Content: fmt.Sprint(i)}))
		}(i)
	}
	wg.Wait()

	turns, err := s.ListTurns(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, turns, 20)
	require.NoError(t, s.Ping(ctx))
}
