package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

const groupColumns = `id, name, description, members, created_by, created_at, updated_at`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Members, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// FindGroupsByMember lists userID's groups, oldest first.
func (s *Store) FindGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM expense_groups WHERE $1 = ANY(members) ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return groups, nil
}

// FindGroupByNameAndMember finds the group called name that userID belongs to.
func (s *Store) FindGroupByNameAndMember(ctx context.Context, name, userID string) (*models.Group, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM expense_groups WHERE name = $1 AND $2 = ANY(members) ORDER BY created_at LIMIT 1`,
		name, userID)
	g, err := scanGroup(row)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("error querying group: %w", err)
	}
	return g, err
}

// FindGroupByID returns the group with the given id.
func (s *Store) FindGroupByID(ctx context.Context, id string) (*models.Group, error) {
	g, err := scanGroup(s.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM expense_groups WHERE id = $1`, id))
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("error querying group: %w", err)
	}
	return g, err
}

// SaveGroup inserts or replaces group.
func (s *Store) SaveGroup(ctx context.Context, group *models.Group) error {
	now := time.Now()
	if group.ID == "" {
		group.ID = models.NewID()
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO expense_groups (id, name, description, members, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, members = EXCLUDED.members`,
		group.ID, group.Name, group.Description, nonNil(group.Members), group.CreatedBy, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving group %s: %w", group.ID, err)
	}
	return nil
}
