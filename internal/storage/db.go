package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type Store struct {
	db     *sql.DB
	driver string
	sql    sq.StatementBuilderType
}

func Open(ctx context.Context, driver, dsn string, autoMigrate bool, migrationsDir string) (*Store, error) {
	driver = normalizeDriver(driver)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}
	if driver == "sqlite" {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, fmt.Errorf("prepare sqlite dir: %w", err)
		}
	}

	// pgx's database/sql adapter registers itself as "pgx".
	openName := driver
	if driver == "postgres" {
		openName = "pgx"
	}
	db, err := sql.Open(openName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if autoMigrate {
		switch driver {
		case "postgres":
			if migrationsDir == "" {
				migrationsDir = "migrations"
			}
			if err := goose.SetDialect("postgres"); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("set goose dialect: %w", err)
			}
			if err := goose.Up(db, migrationsDir); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		case "sqlite":
			if err := initSQLiteSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("init sqlite schema: %w", err)
			}
		default:
			_ = db.Close()
			return nil, fmt.Errorf("unsupported driver %q", driver)
		}
	}

	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		placeholder = sq.Dollar
	}

	return &Store{
		db:     db,
		driver: driver,
		sql:    sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "postgres", "pgx":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (chat_id) REFERENCES chats (id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS custom_models (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    base_model TEXT NOT NULL,
    system_prompt TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id_created_at ON messages(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at DESC);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
