// Package store defines the persistence the bot needs. Implementations live
// in the memory, postgres and mongo subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/models"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence used by the bot. Save methods insert the entity
// when its ID is empty (assigning a new one) and replace it otherwise.
type Store interface {
	FindUserByChatID(ctx context.Context, chatID string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByMobile(ctx context.Context, mobile string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// FindGroupsByMember lists the groups userID belongs to, oldest first.
	FindGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)
	FindGroupByNameAndMember(ctx context.Context, name, userID string) (*models.Group, error)
	FindGroupByID(ctx context.Context, id string) (*models.Group, error)
	SaveGroup(ctx context.Context, group *models.Group) error

	// FindTransactionsByOwnerAndDateRange returns one page of the owner's
	// transactions dated in [start, end), newest first, plus the total
	// number of matches.
	FindTransactionsByOwnerAndDateRange(ctx context.Context, ownerID string, start, end time.Time, offset, limit int) ([]*models.Transaction, int, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	SaveSplit(ctx context.Context, split *models.Split) error

	// UpsertOneTimeCode replaces any code stored for email.
	UpsertOneTimeCode(ctx context.Context, email, code string, createdAt time.Time) error
	FindOneTimeCode(ctx context.Context, email string) (*models.OneTimeCode, error)
	DeleteOneTimeCode(ctx context.Context, id string) error

	// Migrate creates tables or indexes. It is safe to run repeatedly.
	Migrate(ctx context.Context) error
	Close() error
}
