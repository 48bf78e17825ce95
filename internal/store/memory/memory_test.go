package memory

import (
	"context"
	"testing"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLookups(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{ChatID: "42", Email: "a@b.com", Mobile: "9876543210"}
	require.NoError(t, s.SaveUser(ctx, u))
	require.True(t, models.IsID(u.ID))
	assert.False(t, u.CreatedAt.IsZero())

	for name, find := range map[string]func() (*models.User, error){
		"chat":   func() (*models.User, error) { return s.FindUserByChatID(ctx, "42") },
		"id":     func() (*models.User, error) { return s.FindUserByID(ctx, u.ID) },
		"email":  func() (*models.User, error) { return s.FindUserByEmail(ctx, " A@B.com ") },
		"mobile": func() (*models.User, error) { return s.FindUserByMobile(ctx, "9876543210") },
	} {
		got, err := find()
		require.NoError(t, err, name)
		assert.Equal(t, u.ID, got.ID, name)
	}

	_, err := s.FindUserByChatID(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.FindUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSavedUserIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{ChatID: "1"}
	u.Enter(conversation.FlowGroup, conversation.StepGroupDescription,
		conversation.Progress{Group: &conversation.GroupDraft{Name: "Flat"}})
	require.NoError(t, s.SaveUser(ctx, u))

	u.Progress.Group.Name = "changed"

	got, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flat", got.Progress.Group.Name)
	assert.Equal(t, conversation.At(conversation.FlowGroup, conversation.StepGroupDescription), got.State)
}

func TestTransactionsPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		require.NoError(t, s.SaveTransaction(ctx, &models.Transaction{
			UserID: "owner", Amount: decimal.NewFromInt(int64(i + 1)), Date: base.AddDate(0, 0, i),
		}))
	}
	require.NoError(t, s.SaveTransaction(ctx, &models.Transaction{UserID: "other", Amount: decimal.NewFromInt(1), Date: base}))
	require.NoError(t, s.SaveTransaction(ctx, &models.Transaction{UserID: "owner", Amount: decimal.NewFromInt(1), Date: base.AddDate(0, 1, 0)}))

	end := base.AddDate(0, 1, 0)
	page, total, err := s.FindTransactionsByOwnerAndDateRange(ctx, "owner", base, end, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 5)
	assert.True(t, page[0].Amount.Equal(decimal.NewFromInt(7)), "newest first")

	page, _, err = s.FindTransactionsByOwnerAndDateRange(ctx, "owner", base, end, 5, 5)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, _, err = s.FindTransactionsByOwnerAndDateRange(ctx, "owner", base, end, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGroups(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &models.Group{Name: "Trip", Members: []string{"a", "b"}, CreatedBy: "a"}
	require.NoError(t, s.SaveGroup(ctx, g))

	got, err := s.FindGroupByNameAndMember(ctx, "Trip", "b")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	_, err = s.FindGroupByNameAndMember(ctx, "Trip", "c")
	assert.ErrorIs(t, err, store.ErrNotFound)

	groups, err := s.FindGroupsByMember(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestOneTimeCodes(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.UpsertOneTimeCode(ctx, "a@b.com", "111111", now))
	first, err := s.FindOneTimeCode(ctx, "a@b.com")
	require.NoError(t, err)

	require.NoError(t, s.UpsertOneTimeCode(ctx, "a@b.com", "222222", now))
	second, err := s.FindOneTimeCode(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", second.Code)
	assert.Equal(t, first.ID, second.ID)

	require.NoError(t, s.DeleteOneTimeCode(ctx, second.ID))
	_, err = s.FindOneTimeCode(ctx, "a@b.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
