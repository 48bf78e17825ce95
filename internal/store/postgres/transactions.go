package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

// FindTransactionsByOwnerAndDateRange pages through ownerID's transactions
// in [start, end), newest first.
func (s *Store) FindTransactionsByOwnerAndDateRange(ctx context.Context, ownerID string, start, end time.Time, offset, limit int) ([]*models.Transaction, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND date >= $2 AND date < $3`,
		ownerID, start, end).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting transactions: %w", err)
	}
	if total == 0 || offset >= total {
		return nil, total, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, amount, currency, category, COALESCE(description, ''), type, split_type,
			COALESCE(group_id, ''), date, created_at
		FROM transactions
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date DESC, id DESC
		OFFSET $4 LIMIT $5`,
		ownerID, start, end, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.Category, &t.Description,
			&t.Type, &t.SplitType, &t.GroupID, &t.Date, &t.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning row: %w", err)
		}
		result = append(result, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, total, nil
}

// SaveTransaction inserts or replaces tx.
func (s *Store) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	now := time.Now()
	if tx.ID == "" {
		tx.ID = models.NewID()
		tx.CreatedAt = now
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, currency, category, description, type, split_type, group_id, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount, currency = EXCLUDED.currency, category = EXCLUDED.category,
			description = EXCLUDED.description, type = EXCLUDED.type, split_type = EXCLUDED.split_type,
			group_id = EXCLUDED.group_id, date = EXCLUDED.date`,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.Category, nullable(tx.Description), tx.Type, tx.SplitType,
		nullable(tx.GroupID), tx.Date, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SaveSplit writes the split and its participants in one database
// transaction.
func (s *Store) SaveSplit(ctx context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = models.NewID()
		split.CreatedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO splits (id, transaction_id, paid_by, group_id, split_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET split_type = EXCLUDED.split_type, group_id = EXCLUDED.group_id`,
		split.ID, split.TransactionID, split.PaidBy, nullable(split.GroupID), string(split.SplitType), split.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving split %s: %w", split.ID, err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM split_participants WHERE split_id = $1`, split.ID); err != nil {
		return fmt.Errorf("error clearing participants of split %s: %w", split.ID, err)
	}
	for i, p := range split.Participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO split_participants (split_id, position, user_id, share, settled, settlement_method)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			split.ID, i, p.UserID, p.Share, p.Settled, nullable(p.SettlementMethod))
		if err != nil {
			return fmt.Errorf("error saving participant %s of split %s: %w", p.UserID, split.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertOneTimeCode replaces the code stored for email.
func (s *Store) UpsertOneTimeCode(ctx context.Context, email, code string, createdAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO one_time_codes (id, email, code, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, created_at = EXCLUDED.created_at`,
		models.NewID(), models.NormalizeEmail(email), code, createdAt)
	if err != nil {
		return fmt.Errorf("error saving one-time code: %w", err)
	}
	return nil
}

// FindOneTimeCode returns the code stored for email.
func (s *Store) FindOneTimeCode(ctx context.Context, email string) (*models.OneTimeCode, error) {
	var c models.OneTimeCode
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, code, created_at FROM one_time_codes WHERE email = $1`,
		models.NormalizeEmail(email)).Scan(&c.ID, &c.Email, &c.Code, &c.CreatedAt)
	if err != nil {
		if err = notFound(err); err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error querying one-time code: %w", err)
	}
	return &c, nil
}

// DeleteOneTimeCode removes the code with the given id.
func (s *Store) DeleteOneTimeCode(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM one_time_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting one-time code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
