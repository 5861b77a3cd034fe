package memory

import (
	"testing"

	"forge/internal/model"
)

func TestChatHistory_AppendTrimsOldestFirst(t *testing.T) {
	h := NewChatHistory(2)
	h.Append("user", "first")
	h.Append("assistant", "second")
	h.Append("user", "third")

	recent := h.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("got %d messages, want 2 (bounded)", len(recent))
	}
	if recent[0].Content != "second" || recent[1].Content != "third" {
		t.Errorf("recent = %+v, want [second third]", recent)
	}
}

func TestHistoryStore_RolesAreIndependent(t *testing.T) {
	s := NewHistoryStore(10)
	s.For(model.RoleCoder).Append("user", "coder message")
	s.For(model.RoleReviewer).Append("user", "reviewer message")

	if len(s.For(model.RoleCoder).Recent(0)) != 1 {
		t.Errorf("coder history should have exactly its own message")
	}
	if s.For(model.RoleCoder).Recent(0)[0].Content == s.For(model.RoleReviewer).Recent(0)[0].Content {
		t.Errorf("roles must not share history")
	}
}

func TestChatHistory_RecentWithNReturnsLastN(t *testing.T) {
	h := NewChatHistory(10)
	h.Append("user", "a")
	h.Append("user", "b")
	h.Append("user", "c")

	recent := h.Recent(2)
	if len(recent) != 2 || recent[0].Content != "b" || recent[1].Content != "c" {
		t.Errorf("recent(2) = %+v, want [b c]", recent)
	}
}
