package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	s, err := Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setUpdatedAt(t *testing.T, s *Store, chatID int64, ts string) {
	t.Helper()
	if _, err := s.DB().Exec("UPDATE chats SET updated_at = ? WHERE id = ?", ts, chatID); err != nil {
		t.Fatalf("set updated_at: %v", err)
	}
}

func TestCreateChatRequiresModel(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateChat(context.Background(), "hi", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	id, err := s.CreateChat(context.Background(), "", "llama3")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	chat, _, err := s.GetChat(context.Background(), id)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if chat.Title != DefaultChatTitle {
		t.Fatalf("expected default title, got %q", chat.Title)
	}
}

func TestListChatsOrderedByUpdatedAtDesc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateChat(ctx, "a", "llama3")
	b, _ := s.CreateChat(ctx, "b", "llama3")
	c, _ := s.CreateChat(ctx, "c", "llama3")
	setUpdatedAt(t, s, a, "2026-03-01 10:00:02")
	setUpdatedAt(t, s, b, "2026-03-01 10:00:01")
	setUpdatedAt(t, s, c, "2026-03-01 10:00:03")

	chats, err := s.ListChats(ctx)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 3 {
		t.Fatalf("expected 3 chats, got %d", len(chats))
	}
	if chats[0].ID != c || chats[1].ID != a || chats[2].ID != b {
		t.Fatalf("unexpected order: %d %d %d", chats[0].ID, chats[1].ID, chats[2].ID)
	}
}

func TestMessagesReturnedInAppendOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chatID, err := s.CreateChat(ctx, "t", "llama3")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := s.AppendMessage(ctx, chatID, role, c); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}

	msgs, err := s.ListMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, m := range msgs {
		if m.Content != contents[i] {
			t.Fatalf("message %d: expected %q, got %q", i, contents[i], m.Content)
		}
	}
}

func TestGetChatNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.GetChat(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chatID, err := s.CreateChat(ctx, "t", "llama3")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if _, err := s.AppendMessage(ctx, chatID, RoleUser, "hi"); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if _, err := s.AppendMessage(ctx, chatID, RoleAssistant, "hello"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	if err := s.DeleteChat(ctx, chatID); err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	if _, _, err := s.GetChat(ctx, chatID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	msgs, err := s.ListMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no orphan messages, got %d", len(msgs))
	}

	if err := s.DeleteChat(ctx, chatID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRenameChatIfFirstExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", 60)
	chatID, _ := s.CreateChat(ctx, "", "llama3")
	_, _ = s.AppendMessage(ctx, chatID, RoleUser, long)
	_, _ = s.AppendMessage(ctx, chatID, RoleAssistant, "reply")

	if err := s.RenameChatIfFirstExchange(ctx, chatID, long); err != nil {
		t.Fatalf("rename: %v", err)
	}
	chat, _, _ := s.GetChat(ctx, chatID)
	want := strings.Repeat("x", 50) + "..."
	if chat.Title != want {
		t.Fatalf("expected truncated title %q, got %q", want, chat.Title)
	}

	// A third message makes any further rename a no-op.
	_, _ = s.AppendMessage(ctx, chatID, RoleUser, "again")
	if err := s.RenameChatIfFirstExchange(ctx, chatID, "something else"); err != nil {
		t.Fatalf("rename no-op: %v", err)
	}
	chat, _, _ = s.GetChat(ctx, chatID)
	if chat.Title != want {
		t.Fatalf("title changed on no-op rename: %q", chat.Title)
	}
}

func TestTruncateTitle(t *testing.T) {
	short := strings.Repeat("a", 30)
	if got := TruncateTitle(short); got != short {
		t.Fatalf("short title changed: %q", got)
	}
	long := strings.Repeat("b", 60)
	if got := TruncateTitle(long); got != strings.Repeat("b", 50)+"..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestTouchChatNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.TouchChat(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
