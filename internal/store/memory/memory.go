// Package memory is an in-process store. It backs tests and the "memory"
// store setting; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

// Store keeps entities in maps. Values are copied on the way in and out so
// callers never share memory with the store, like a real database.
type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	users        map[string]*models.User
	groups       map[string]*models.Group
	transactions map[string]*models.Transaction
	splits       map[string]*models.Split
	codes        map[string]*models.OneTimeCode // by email
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:          time.Now,
		users:        make(map[string]*models.User),
		groups:       make(map[string]*models.Group),
		transactions: make(map[string]*models.Transaction),
		splits:       make(map[string]*models.Split),
		codes:        make(map[string]*models.OneTimeCode),
	}
}

func (s *Store) findUser(match func(*models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil, store.ErrNotFound
}

// FindUserByChatID returns the user bound to chatID.
func (s *Store) FindUserByChatID(_ context.Context, chatID string) (*models.User, error) {
	if chatID == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(func(u *models.User) bool { return u.ChatID == chatID })
}

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUser(u)
}

// FindUserByEmail matches the normalized email.
func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(func(u *models.User) bool { return u.Email == email })
}

// FindUserByMobile matches the mobile number exactly.
func (s *Store) FindUserByMobile(_ context.Context, mobile string) (*models.User, error) {
	if mobile == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(func(u *models.User) bool { return u.Mobile == mobile })
}

// SaveUser inserts or replaces user.
func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	now := s.now()
	if user.ID == "" {
		user.ID = models.NewID()
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	c, err := cloneUser(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users[user.ID] = c
	s.mu.Unlock()
	return nil
}

// DeleteUser removes the user with the given id.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// FindGroupsByMember lists userID's groups, oldest first.
func (s *Store) FindGroupsByMember(_ context.Context, userID string) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Group
	for _, g := range s.groups {
		if g.HasMember(userID) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindGroupByNameAndMember finds the group called name that userID belongs to.
func (s *Store) FindGroupByNameAndMember(ctx context.Context, name, userID string) (*models.Group, error) {
	groups, err := s.FindGroupsByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

// FindGroupByID returns the group with the given id.
func (s *Store) FindGroupByID(_ context.Context, id string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneGroup(g), nil
}

// SaveGroup inserts or replaces group.
func (s *Store) SaveGroup(_ context.Context, group *models.Group) error {
	now := s.now()
	if group.ID == "" {
		group.ID = models.NewID()
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	s.mu.Lock()
	s.groups[group.ID] = cloneGroup(group)
	s.mu.Unlock()
	return nil
}

// FindTransactionsByOwnerAndDateRange pages through ownerID's transactions
// in [start, end), newest first.
func (s *Store) FindTransactionsByOwnerAndDateRange(_ context.Context, ownerID string, start, end time.Time, offset, limit int) ([]*models.Transaction, int, error) {
	s.mu.RLock()
	var matched []*models.Transaction
	for _, t := range s.transactions {
		if t.UserID == ownerID && !t.Date.Before(start) && t.Date.Before(end) {
			c := *t
			matched = append(matched, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date.Equal(matched[j].Date) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Date.After(matched[j].Date)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	stop := total
	if limit > 0 && offset+limit < total {
		stop = offset + limit
	}
	return matched[offset:stop], total, nil
}

// SaveTransaction inserts or replaces tx.
func (s *Store) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	now := s.now()
	if tx.ID == "" {
		tx.ID = models.NewID()
		tx.CreatedAt = now
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}
	c := *tx
	s.mu.Lock()
	s.transactions[tx.ID] = &c
	s.mu.Unlock()
	return nil
}

// SaveSplit inserts or replaces split.
func (s *Store) SaveSplit(_ context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = models.NewID()
		split.CreatedAt = s.now()
	}
	c := *split
	c.Participants = append([]models.Participant(nil), split.Participants...)
	s.mu.Lock()
	s.splits[split.ID] = &c
	s.mu.Unlock()
	return nil
}

// UpsertOneTimeCode replaces the code stored for email.
func (s *Store) UpsertOneTimeCode(_ context.Context, email, code string, createdAt time.Time) error {
	email = models.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := models.NewID()
	if old, ok := s.codes[email]; ok {
		id = old.ID
	}
	s.codes[email] = &models.OneTimeCode{ID: id, Email: email, Code: code, CreatedAt: createdAt}
	return nil
}

// FindOneTimeCode returns the code stored for email.
func (s *Store) FindOneTimeCode(_ context.Context, email string) (*models.OneTimeCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.codes[models.NormalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// DeleteOneTimeCode removes the code with the given id.
func (s *Store) DeleteOneTimeCode(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, c := range s.codes {
		if c.ID == id {
			delete(s.codes, email)
			return nil
		}
	}
	return store.ErrNotFound
}

// Migrate is a no-op.
func (s *Store) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// SetClock replaces the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Splits returns a copy of every stored split.
func (s *Store) Splits() []*models.Split {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Split, 0, len(s.splits))
	for _, sp := range s.splits {
		c := *sp
		c.Participants = append([]models.Participant(nil), sp.Participants...)
		out = append(out, &c)
	}
	return out
}

// Transaction returns the stored transaction with the given id.
func (s *Store) Transaction(id string) (*models.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	c := *t
	return &c, true
}

// cloneUser deep copies u, round-tripping the progress through its stored
// form so drafts are not shared.
func cloneUser(u *models.User) (*models.User, error) {
	c := *u
	c.Transactions = append([]string(nil), u.Transactions...)
	c.Splits = append([]string(nil), u.Splits...)
	c.Groups = append([]string(nil), u.Groups...)

	raw, err := conversation.EncodeProgress(u.Progress)
	if err != nil {
		return nil, fmt.Errorf("encode progress of user %s: %w", u.ID, err)
	}
	c.Progress, err = conversation.DecodeProgress(u.Progress.Flow(), raw)
	if err != nil {
		return nil, fmt.Errorf("decode progress of user %s: %w", u.ID, err)
	}
	return &c, nil
}

func cloneGroup(g *models.Group) *models.Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c
}
