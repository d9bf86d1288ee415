package storage

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Chat struct {
	ID        int64
	Title     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID        int64
	ChatID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}

type CustomModel struct {
	ID           int64
	Name         string
	BaseModel    string
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
