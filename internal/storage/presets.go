package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) CreatePreset(ctx context.Context, name, baseModel, systemPrompt string) (int64, error) {
	if err := validatePresetFields(name, baseModel, systemPrompt); err != nil {
		return 0, err
	}

	q := s.sql.Insert("custom_models").
		Columns("name", "base_model", "system_prompt").
		Values(name, baseModel, systemPrompt).
		Suffix("RETURNING id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create preset query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("create preset: %w", err)
	}
	return id, nil
}

func (s *Store) UpdatePreset(ctx context.Context, id int64, name, baseModel, systemPrompt string) error {
	if err := validatePresetFields(name, baseModel, systemPrompt); err != nil {
		return err
	}

	q := s.sql.Update("custom_models").
		Set("name", name).
		Set("base_model", baseModel).
		Set("system_prompt", systemPrompt).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update preset query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePreset(ctx context.Context, id int64) error {
	q := s.sql.Delete("custom_models").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete preset query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListPresets(ctx context.Context) ([]CustomModel, error) {
	q := s.sql.Select("id", "name", "base_model", "system_prompt", "created_at", "updated_at").
		From("custom_models").
		OrderBy("name ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list presets query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	out := make([]CustomModel, 0)
	for rows.Next() {
		var m CustomModel
		if err := rows.Scan(&m.ID, &m.Name, &m.BaseModel, &m.SystemPrompt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preset row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preset rows: %w", err)
	}
	return out, nil
}

// ResolvePreset looks a model name up against the preset registry.
// A miss is not an error: the name is then treated as a literal base
// model identifier.
func (s *Store) ResolvePreset(ctx context.Context, name string) (CustomModel, bool, error) {
	q := s.sql.Select("id", "name", "base_model", "system_prompt", "created_at", "updated_at").
		From("custom_models").
		Where(sq.Eq{"name": name})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return CustomModel{}, false, fmt.Errorf("build resolve preset query: %w", err)
	}

	var m CustomModel
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.Name, &m.BaseModel, &m.SystemPrompt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CustomModel{}, false, nil
		}
		return CustomModel{}, false, fmt.Errorf("resolve preset: %w", err)
	}
	return m, true, nil
}

func validatePresetFields(name, baseModel, systemPrompt string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name: %w", ErrValidation)
	}
	if strings.TrimSpace(baseModel) == "" {
		return fmt.Errorf("base_model: %w", ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return fmt.Errorf("system_prompt: %w", ErrValidation)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
