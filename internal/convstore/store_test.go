package convstore

import (
	"testing"
	"time"

	"github.com/stockgateway/stockgateway/internal/models"
)

func TestStore_AppendAndSnapshot(t *testing.T) {
	s := NewStore(10, time.Minute)
	s.Append("conv-1", msg(models.RoleUser, "hello"))
	s.Append("conv-1", msg(models.RoleAssistant, "hi there"))

	got := s.Snapshot("conv-1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Fatalf("unexpected message order: %+v", got)
	}
}

func TestStore_ClearRemovesHistory(t *testing.T) {
	s := NewStore(10, time.Minute)
	s.Append("conv-1", msg(models.RoleUser, "hello"))
	s.Clear("conv-1")

	got := s.Snapshot("conv-1")
	if len(got) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(got))
	}
}

func TestStore_IsolatesConversations(t *testing.T) {
	s := NewStore(10, time.Minute)
	s.Append("a", msg(models.RoleUser, "a1"))
	s.Append("b", msg(models.RoleUser, "b1"))

	if len(s.Snapshot("a")) != 1 || len(s.Snapshot("b")) != 1 {
		t.Fatalf("conversations should not share state")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 tracked conversations, got %d", s.Len())
	}
}
