package bot

import (
	"context"
	"testing"

	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookupRecorder records which user lookups ran.
type lookupRecorder struct {
	*memory.Store
	calls []string
}

func (r *lookupRecorder) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	r.calls = append(r.calls, "id")
	return r.Store.FindUserByID(ctx, id)
}

func (r *lookupRecorder) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.calls = append(r.calls, "email")
	return r.Store.FindUserByEmail(ctx, email)
}

func (r *lookupRecorder) FindUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	r.calls = append(r.calls, "mobile")
	return r.Store.FindUserByMobile(ctx, mobile)
}

func TestResolveIdentifier(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	alice := &models.User{Name: "Alice", Email: "alice@x.com", Mobile: "9000000001"}
	require.NoError(t, mem.SaveUser(ctx, alice))

	tests := []struct {
		name       string
		identifier string
		calls      []string
		found      bool
	}{
		{name: "id", identifier: alice.ID, calls: []string{"id"}, found: true},
		{name: "id shaped digits", identifier: "123456789012345678901234", calls: []string{"id"}},
		{name: "email", identifier: "  Alice@X.com ", calls: []string{"email"}, found: true},
		{name: "unknown email", identifier: "bob@x.com", calls: []string{"email"}},
		{name: "mobile", identifier: "9000000001", calls: []string{"mobile"}, found: true},
		{name: "unknown mobile", identifier: "9000000009", calls: []string{"mobile"}},
		{name: "name", identifier: "Alice", calls: nil},
		{name: "empty", identifier: "  ", calls: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &lookupRecorder{Store: mem}
			u, err := resolveIdentifier(ctx, rec, tt.identifier)
			require.NoError(t, err)
			assert.Equal(t, tt.calls, rec.calls)
			if tt.found {
				require.NotNil(t, u)
				assert.Equal(t, alice.ID, u.ID)
			} else {
				assert.Nil(t, u)
			}
		})
	}
}

func TestResolveList(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	alice := &models.User{Email: "alice@x.com", Mobile: "9000000001"}
	bob := &models.User{Email: "bob@x.com", Mobile: "9000000002"}
	require.NoError(t, mem.SaveUser(ctx, alice))
	require.NoError(t, mem.SaveUser(ctx, bob))

	res, err := resolveList(ctx, mem, "9000000002, alice@x.com, , nobody, bob@x.com, "+alice.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, res.Users, 1)
	assert.Equal(t, bob.ID, res.Users[0].ID)
	assert.Equal(t, []string{"nobody"}, res.Unresolved)

	res, err = resolveList(ctx, mem, "", "")
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Empty(t, res.Unresolved)
}
