package domain

import (
	"testing"
	"time"
)

func TestUserInactiveFor(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	u := &User{LastSeenAt: now.Add(-2 * time.Hour)}

	if !u.InactiveFor(time.Hour, now) {
		t.Fatal("expected user idle for 2h to be inactive for a 1h ttl")
	}
	if u.InactiveFor(3*time.Hour, now) {
		t.Fatal("expected user idle for 2h to be active for a 3h ttl")
	}
	if u.InactiveFor(0, now) {
		t.Fatal("expected zero ttl to never expire")
	}
}

func TestRolePersistable(t *testing.T) {
	cases := map[Role]bool{
		RoleUser:      true,
		RoleAssistant: true,
		RoleSystem:    false,
		Role("tool"):  false,
	}
	for role, want := range cases {
		if got := role.Persistable(); got != want {
			t.Errorf("Role(%q).Persistable() = %v, want %v", role, got, want)
		}
	}
	if Role("tool").Valid() {
		t.Error("unexpected valid role tool")
	}
}
