package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"go.uber.org/zap"
)

const userColumns = `id, COALESCE(chat_id, ''), name, COALESCE(email, ''), COALESCE(mobile, ''),
	is_verified, status, COALESCE(currency_preference, ''), curr_state, in_progress_data,
	transaction_ids, split_ids, group_ids, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, []byte, error) {
	var (
		u        models.User
		rawState string
		progress []byte
	)
	err := row.Scan(&u.ID, &u.ChatID, &u.Name, &u.Email, &u.Mobile,
		&u.IsVerified, &u.Status, &u.CurrencyPreference, &rawState, &progress,
		&u.Transactions, &u.Splits, &u.Groups, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, nil, notFound(err)
	}
	u.State = conversation.Decode(rawState)
	return &u, progress, nil
}

// restoreProgress decodes the saved progress of u. Progress that no longer
// decodes is dropped and the user's state reset so that the user can start
// over.
func restoreProgress(log *zap.Logger, u *models.User, raw []byte) {
	var err error
	if u.Progress, err = conversation.DecodeProgress(u.State.Flow, raw); err != nil {
		log.Warn("Dropping unreadable progress",
			zap.String("user_id", u.ID),
			zap.String("state", u.State.String()),
			zap.Error(err))
		u.ResetState()
	}
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, progress, err := scanUser(row)
	if err != nil {
		if err != store.ErrNotFound {
			return nil, fmt.Errorf("error querying user: %w", err)
		}
		return nil, err
	}
	restoreProgress(s.log, u, progress)
	return u, nil
}

// FindUserByChatID returns the user bound to chatID.
func (s *Store) FindUserByChatID(ctx context.Context, chatID string) (*models.User, error) {
	if chatID == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, `chat_id = $1`, chatID)
}

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, `id = $1`, id)
}

// FindUserByEmail matches the normalized email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, `email = $1`, email)
}

// FindUserByMobile matches the mobile number exactly.
func (s *Store) FindUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	if mobile == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, `mobile = $1`, mobile)
}

// SaveUser inserts or replaces user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	progress, err := conversation.EncodeProgress(user.Progress)
	if err != nil {
		return fmt.Errorf("error encoding progress: %w", err)
	}

	now := time.Now()
	if user.ID == "" {
		user.ID = models.NewID()
		user.CreatedAt = now
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	user.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, chat_id, name, email, mobile, is_verified, status, currency_preference,
			curr_state, in_progress_data, transaction_ids, split_ids, group_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id, name = EXCLUDED.name, email = EXCLUDED.email,
			mobile = EXCLUDED.mobile, is_verified = EXCLUDED.is_verified, status = EXCLUDED.status,
			currency_preference = EXCLUDED.currency_preference, curr_state = EXCLUDED.curr_state,
			in_progress_data = EXCLUDED.in_progress_data, transaction_ids = EXCLUDED.transaction_ids,
			split_ids = EXCLUDED.split_ids, group_ids = EXCLUDED.group_ids`,
		user.ID, nullable(user.ChatID), user.Name, nullable(models.NormalizeEmail(user.Email)), nullable(user.Mobile),
		user.IsVerified, user.Status, nullable(user.CurrencyPreference), user.State.String(), progress,
		nonNil(user.Transactions), nonNil(user.Splits), nonNil(user.Groups), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving user %s: %w", user.ID, err)
	}
	return nil
}

// DeleteUser removes the user with the given id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
