package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

var digitsRegex = regexp.MustCompile(`^\d+$`)

// resolveIdentifier finds the user named by an id, email or mobile number,
// tried in that order. A well-formed id is only ever looked up as an id.
// It returns nil without error when nothing matches.
func resolveIdentifier(ctx context.Context, st store.Store, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		u   *models.User
		err error
	)
	switch {
	case identifier == "":
		return nil, nil
	case models.IsID(identifier):
		u, err = st.FindUserByID(ctx, identifier)
	case strings.Contains(identifier, "@"):
		u, err = st.FindUserByEmail(ctx, models.NormalizeEmail(identifier))
	case digitsRegex.MatchString(identifier):
		u, err = st.FindUserByMobile(ctx, identifier)
	default:
		return nil, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// resolution is the outcome of resolving a comma-separated list.
type resolution struct {
	Users      []*models.User
	Unresolved []string
}

// resolveList resolves each comma-separated entry of text. Users are
// deduplicated in input order and exclude is skipped silently.
func resolveList(ctx context.Context, st store.Store, text, exclude string) (resolution, error) {
	var res resolution
	seen := map[string]bool{exclude: true}
	for _, entry := range strings.Split(text, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		u, err := resolveIdentifier(ctx, st, entry)
		if err != nil {
			return resolution{}, err
		}
		if u == nil {
			res.Unresolved = append(res.Unresolved, entry)
			continue
		}
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		res.Users = append(res.Users, u)
	}
	return res, nil
}
