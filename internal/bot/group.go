package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/oatsaysai/budgetbuddy/internal/conversation"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
)

var groupBack = map[conversation.Step]conversation.Step{
	conversation.StepGroupDescription: conversation.StepGroupName,
	conversation.StepGroupMembers:     conversation.StepGroupDescription,
}

// groupController creates a group: name, description, then members.
type groupController struct {
	store store.Store
}

func (c *groupController) Start(_ context.Context, u *models.User) (Response, error) {
	return c.enter(u, conversation.StepGroupName, &conversation.GroupDraft{}), nil
}

func (c *groupController) HandleInput(ctx context.Context, u *models.User, text string) (Response, error) {
	draft := u.Progress.Group
	if draft == nil {
		draft = &conversation.GroupDraft{}
	}
	text = strings.TrimSpace(text)

	switch u.State.Step {
	case conversation.StepGroupName:
		if text == "" || utf8.RuneCountInString(text) > models.MaxGroupNameLength {
			return reply(fmt.Sprintf("⚠️ Group name must be 1-%d characters.", models.MaxGroupNameLength), cancelKeyboard()), nil
		}
		_, err := c.store.FindGroupByNameAndMember(ctx, text, u.ID)
		switch {
		case err == nil:
			return reply(fmt.Sprintf("⚠️ You already have a group named %q. Choose another name:", text), cancelKeyboard()), nil
		case !errors.Is(err, store.ErrNotFound):
			return Response{}, upstream("❌ Error creating group", err)
		}
		draft.Name = text
		return c.enter(u, conversation.StepGroupDescription, draft), nil

	case conversation.StepGroupDescription:
		if utf8.RuneCountInString(text) > models.MaxGroupDescriptionLength {
			return reply(fmt.Sprintf("⚠️ Description must be at most %d characters.", models.MaxGroupDescriptionLength), cancelKeyboard()), nil
		}
		draft.Description = text
		return c.enter(u, conversation.StepGroupMembers, draft), nil

	case conversation.StepGroupMembers:
		return c.create(ctx, u, draft, text)
	}
	return Response{}, fmt.Errorf("unhandled group step %q", u.State.Step)
}

func (c *groupController) HandleBack(_ context.Context, u *models.User) (Response, error) {
	prev, ok := groupBack[u.State.Step]
	if !ok {
		u.ResetState()
		return reply("🏠 Main Menu:", mainKeyboard()), nil
	}
	draft := u.Progress.Group
	if draft == nil {
		draft = &conversation.GroupDraft{}
	}
	return c.enter(u, prev, draft), nil
}

func (c *groupController) enter(u *models.User, step conversation.Step, draft *conversation.GroupDraft) Response {
	u.Enter(conversation.FlowGroup, step, conversation.Progress{Group: draft})
	switch step {
	case conversation.StepGroupName:
		return reply("🆕 Enter group name:", cancelKeyboard())
	case conversation.StepGroupDescription:
		return reply("📝 Enter group description:", cancelKeyboard())
	default:
		return reply("👥 Add members (comma-separated emails/mobiles/IDs):", cancelKeyboard())
	}
}

// create saves the group with the creator as its first member. Entries
// that match no user are reported but do not block creation.
func (c *groupController) create(ctx context.Context, u *models.User, draft *conversation.GroupDraft, text string) (Response, error) {
	res, err := resolveList(ctx, c.store, text, u.ID)
	if err != nil {
		return Response{}, upstream("❌ Error creating group", err)
	}

	group := &models.Group{
		Name:        draft.Name,
		Description: draft.Description,
		Members:     []string{u.ID},
		CreatedBy:   u.ID,
	}
	for _, m := range res.Users {
		group.AddMember(m.ID)
	}
	if err := c.store.SaveGroup(ctx, group); err != nil {
		return Response{}, upstream("❌ Error creating group", err)
	}
	u.Groups = append(u.Groups, group.ID)
	u.ResetState()

	var resp Response
	if len(res.Unresolved) > 0 {
		resp = reply(fmt.Sprintf("⚠️ Invalid entries: %s", strings.Join(res.Unresolved, ", ")), nil)
	}
	return resp.add(reply(fmt.Sprintf("✅ Group %q created with %d members!", group.Name, len(group.Members)), mainKeyboard())), nil
}
