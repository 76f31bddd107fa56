// Package repository persists the event log and automation rules.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opsdesk_backend/internal/automation/domain"
	"opsdesk_backend/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRuleNotFound = errors.New("automation rule not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes one immutable event log row. This subsystem never updates
// or deletes event rows.
func (r *Repository) Append(ctx context.Context, params domain.LogEventParams) (events.Event, error) {
	event := events.Event{
		ID:          uuid.New(),
		WorkspaceID: params.WorkspaceID,
		Type:        params.Type,
		EntityType:  params.EntityType,
		EntityID:    params.EntityID,
		Payload:     params.Payload,
		CreatedAt:   time.Now(),
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return events.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO event_log (id, workspace_id, type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.WorkspaceID, event.Type, event.EntityType, event.EntityID, payload, event.CreatedAt)
	if err != nil {
		return events.Event{}, err
	}

	return event, nil
}

// ListActive returns the active rules for a workspace and trigger, in
// creation order. Cross-rule execution order carries no guarantee; this
// ordering is just the natural read order.
func (r *Repository) ListActive(ctx context.Context, workspaceID uuid.UUID, trigger events.Type) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, name, trigger, is_active, actions, created_at, updated_at
		FROM automation_rules
		WHERE workspace_id = $1 AND trigger = $2 AND is_active = true
		ORDER BY created_at ASC
	`, workspaceID, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// List returns all rules for a workspace.
func (r *Repository) List(ctx context.Context, workspaceID uuid.UUID) ([]domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, name, trigger, is_active, actions, created_at, updated_at
		FROM automation_rules
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// Create inserts a rule.
func (r *Repository) Create(ctx context.Context, rule domain.Rule) error {
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshal rule actions: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO automation_rules (id, workspace_id, name, trigger, is_active, actions)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rule.ID, rule.WorkspaceID, rule.Name, rule.Trigger, rule.IsActive, actions)

	return err
}

// CountByWorkspace returns how many rules a workspace has, active or not.
func (r *Repository) CountByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM automation_rules WHERE workspace_id = $1
	`, workspaceID).Scan(&count)

	return count, err
}

func collectRules(rows pgx.Rows) ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0)
	for rows.Next() {
		var (
			rule    domain.Rule
			actions []byte
		)
		if err := rows.Scan(&rule.ID, &rule.WorkspaceID, &rule.Name, &rule.Trigger, &rule.IsActive, &actions, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions for rule %s: %w", rule.ID, err)
		}
		rules = append(rules, rule)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return rules, nil
}
