package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("missing required field")
)

const (
	DefaultChatTitle = "New Chat"
	maxTitleLen      = 50
)

func (s *Store) CreateChat(ctx context.Context, title, model string) (int64, error) {
	if strings.TrimSpace(model) == "" {
		return 0, fmt.Errorf("model: %w", ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultChatTitle
	}
	q := s.sql.Insert("chats").
		Columns("title", "model").
		Values(title, model).
		Suffix("RETURNING id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create chat query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create chat: %w", err)
	}
	return id, nil
}

func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	q := s.sql.Select("id", "title", "model", "created_at", "updated_at").
		From("chats").
		OrderBy("updated_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chats query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetChat(ctx context.Context, chatID int64) (Chat, []Message, error) {
	q := s.sql.Select("id", "title", "model", "created_at", "updated_at").
		From("chats").
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Chat{}, nil, fmt.Errorf("build get chat query: %w", err)
	}

	var c Chat
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.ID, &c.Title, &c.Model, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, nil, ErrNotFound
		}
		return Chat{}, nil, fmt.Errorf("get chat: %w", err)
	}

	msgs, err := s.ListMessages(ctx, chatID)
	if err != nil {
		return Chat{}, nil, err
	}
	return c, msgs, nil
}

func (s *Store) AppendMessage(ctx context.Context, chatID int64, role, content string) (int64, error) {
	q := s.sql.Insert("messages").
		Columns("chat_id", "role", "content").
		Values(chatID, role, content).
		Suffix("RETURNING id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build append message query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return id, nil
}

// ListMessages returns the chat history oldest first. Ties on created_at
// fall back to insertion order.
func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	q := s.sql.Select("id", "chat_id", "role", "content", "created_at").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("created_at ASC", "id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) MessageCount(ctx context.Context, chatID int64) (int, error) {
	q := s.sql.Select("COUNT(*)").From("messages").Where(sq.Eq{"chat_id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build message count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *Store) TouchChat(ctx context.Context, chatID int64) error {
	q := s.sql.Update("chats").
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build touch chat query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RenameChatIfFirstExchange sets the chat title from the first user
// message once the first user+assistant pair is committed. It is a no-op
// for any later exchange.
func (s *Store) RenameChatIfFirstExchange(ctx context.Context, chatID int64, candidate string) error {
	count, err := s.MessageCount(ctx, chatID)
	if err != nil {
		return err
	}
	if count != 2 {
		return nil
	}

	q := s.sql.Update("chats").
		Set("title", TruncateTitle(candidate)).
		Where(sq.Eq{"id": chatID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build rename chat query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and all of its messages in one transaction.
func (s *Store) DeleteChat(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete chat tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	delMsgs := s.sql.Delete("messages").Where(sq.Eq{"chat_id": chatID})
	sqlStr, args, err := delMsgs.ToSql()
	if err != nil {
		return fmt.Errorf("build delete messages query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	delChat := s.sql.Delete("chats").Where(sq.Eq{"id": chatID})
	sqlStr, args, err = delChat.ToSql()
	if err != nil {
		return fmt.Errorf("build delete chat query: %w", err)
	}
	res, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete chat tx: %w", err)
	}
	return nil
}

// TruncateTitle shortens a candidate chat title to 50 characters and
// marks the cut with a trailing ellipsis.
func TruncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleLen {
		return s
	}
	return string(r[:maxTitleLen]) + "..."
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
