package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"basilisk-bot/types"
)

// CreateStoryPrompt inserts a new prompt template. If it is created active,
// every other active template of the same type is deactivated first.
func (s *Store) CreateStoryPrompt(ctx context.Context, p *types.PromptTemplate) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Type == "" {
		p.Type = types.PostTypeStory
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if p.IsActive {
		if err := deactivateType(ctx, tx, p.Type); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO story_prompts (type, system_message, user_prompt, is_active, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.Type), p.SystemMessage, p.UserPrompt, boolInt(p.IsActive),
		nullStr(p.Name), nullStr(p.Description),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert story prompt: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return tx.Commit()
}

// UpdateStoryPrompt applies the set fields of upd to the template with the
// given id. Activating a template deactivates the other templates of its type;
// a nil IsActive leaves activation as it was.
func (s *Store) UpdateStoryPrompt(ctx context.Context, id int64, upd *types.PromptUpdate) (*types.PromptTemplate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := scanPrompt(tx.QueryRowContext(ctx, promptSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if upd.SystemMessage != "" {
		existing.SystemMessage = upd.SystemMessage
	}
	if upd.UserPrompt != "" {
		existing.UserPrompt = upd.UserPrompt
	}
	if upd.Name != "" {
		existing.Name = upd.Name
	}
	if upd.Description != "" {
		existing.Description = upd.Description
	}
	if upd.Type != "" {
		existing.Type = upd.Type
	}

	if upd.IsActive != nil {
		if *upd.IsActive && !existing.IsActive {
			if err := deactivateType(ctx, tx, existing.Type); err != nil {
				return nil, err
			}
		}
		existing.IsActive = *upd.IsActive
	}
	existing.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE story_prompts SET type = ?, system_message = ?, user_prompt = ?, is_active = ?, name = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		string(existing.Type), existing.SystemMessage, existing.UserPrompt,
		boolInt(existing.IsActive), nullStr(existing.Name), nullStr(existing.Description),
		existing.UpdatedAt.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("update story prompt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteStoryPrompt removes a template
func (s *Store) DeleteStoryPrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM story_prompts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStoryPrompts returns all templates, newest first
func (s *Store) ListStoryPrompts(ctx context.Context) ([]types.PromptTemplate, error) {
	rows, err := s.db.QueryContext(ctx, promptSelect+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []types.PromptTemplate
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

// ActiveStoryPrompt returns the active template for the given type, or
// ErrNotFound when none is active.
func (s *Store) ActiveStoryPrompt(ctx context.Context, t types.PostType) (*types.PromptTemplate, error) {
	return scanPrompt(s.db.QueryRowContext(ctx,
		promptSelect+` WHERE type = ? AND is_active = 1 ORDER BY updated_at DESC LIMIT 1`, string(t)))
}

const promptSelect = `SELECT id, type, system_message, user_prompt, is_active, name, description, created_at, updated_at
	FROM story_prompts`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func deactivateType(ctx context.Context, db execer, t types.PostType) error {
	_, err := db.ExecContext(ctx,
		`UPDATE story_prompts SET is_active = 0 WHERE type = ? AND is_active = 1`, string(t))
	return err
}

func scanPrompt(row scanner) (*types.PromptTemplate, error) {
	var p types.PromptTemplate
	var typ string
	var active int
	var name, description sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &typ, &p.SystemMessage, &p.UserPrompt, &active, &name, &description, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Type = types.PostType(typ)
	p.IsActive = active != 0
	p.Name = name.String
	p.Description = description.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
