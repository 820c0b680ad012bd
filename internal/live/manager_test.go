package live

import (
	"context"
	"strconv"
	"sync"
	"testing"
)

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager()
	sess := NewSession("user123", "tab-1", nil, nil)

	sm.Register("user123", "tab-1", sess)

	if active := sm.GetActive("user123", "tab-1"); active != sess {
		t.Errorf("Expected session %p, got %p", sess, active)
	}
	if !sm.HasUser("user123") {
		t.Error("Expected user to have a live session")
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager()
	sess := NewSession("user123", "tab-1", nil, nil)

	sm.Register("user123", "tab-1", sess)
	sm.Unregister("user123", "tab-1", sess)

	if active := sm.GetActive("user123", "tab-1"); active != nil {
		t.Errorf("Expected nil session, got %p", active)
	}
	if sm.HasUser("user123") {
		t.Error("Expected no live session for user")
	}
}

func TestSessionManager_UnregisterStale(t *testing.T) {
	sm := NewSessionManager()
	first := NewSession("user123", "tab-1", nil, nil)
	second := NewSession("user123", "tab-1", nil, nil)

	sm.Register("user123", "tab-1", first)
	sm.Register("user123", "tab-1", second)

	// The replaced session unregistering late must not evict its successor.
	sm.Unregister("user123", "tab-1", first)

	if active := sm.GetActive("user123", "tab-1"); active != second {
		t.Errorf("Expected session %p, got %p", second, active)
	}
}

func TestSessionManager_RegisterClosesReplaced(t *testing.T) {
	sm := NewSessionManager()
	ctx, cancel := context.WithCancel(context.Background())
	first := NewSession("user123", "tab-1", nil, cancel)
	id, err := first.Workspace.BeginRequest()
	if err != nil {
		t.Fatalf("BeginRequest: %v", err)
	}

	sm.Register("user123", "tab-1", first)
	sm.Register("user123", "tab-1", NewSession("user123", "tab-1", nil, nil))

	if ctx.Err() == nil {
		t.Error("Expected replaced session context to be cancelled")
	}
	if _, applied := first.Workspace.CompleteRequest(id, "Step 1: late"); applied {
		t.Error("Expected reply for replaced session to be dropped")
	}
}

func TestSessionManager_CloseUser(t *testing.T) {
	sm := NewSessionManager()
	var cancelled sync.WaitGroup
	cancelled.Add(2)
	for _, sid := range []string{"tab-1", "tab-2"} {
		sm.Register("user123", sid, NewSession("user123", sid, nil, func() { cancelled.Done() }))
	}
	sm.Register("other", "tab-1", NewSession("other", "tab-1", nil, nil))

	sm.CloseUser("user123")
	cancelled.Wait()

	if sm.HasUser("user123") {
		t.Error("Expected user sessions to be removed")
	}
	if got := sm.Count(); got != 1 {
		t.Errorf("Expected 1 remaining session, got %d", got)
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager()
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sid := "tab-" + strconv.Itoa(i)
			sm.Register(userID, sid, NewSession(userID, sid, nil, nil))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.GetActive(userID, "tab-"+strconv.Itoa(i))
		}
	}()
	wg.Wait()

	if got := sm.Count(); got != 1000 {
		t.Errorf("Expected 1000 sessions, got %d", got)
	}
}

func TestSessionManager_Users(t *testing.T) {
	sm := NewSessionManager()
	sm.Register("a", "tab-1", NewSession("a", "tab-1", nil, nil))
	sm.Register("a", "tab-2", NewSession("a", "tab-2", nil, nil))
	sm.Register("b", "tab-1", NewSession("b", "tab-1", nil, nil))

	users := sm.Users()
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %v", users)
	}
}
