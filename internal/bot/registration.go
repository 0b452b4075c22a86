package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/NegroPrimo123/Students-Bot/internal/bot/session"
	"github.com/NegroPrimo123/Students-Bot/internal/groups"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

// nameToken accepts letters of any alphabet plus hyphens, so both Latin and
// Cyrillic names and double-barrelled surnames pass.
var nameToken = regexp.MustCompile(`^[\p{L}-]+$`)

// splitFullName validates a free-text full name: at least two whitespace
// separated parts, every part letters and hyphens only. The third part is
// optional.
func splitFullName(text string) (last, first, middle string, ok bool) {
	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) < 2 {
		return "", "", "", false
	}
	for _, p := range parts {
		if !nameToken.MatchString(p) {
			return "", "", "", false
		}
	}
	last, first = parts[0], parts[1]
	if len(parts) > 2 {
		middle = strings.Join(parts[2:], " ")
	}
	return last, first, middle, true
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, username string) error {
	student, err := b.repo.GetStudentByTelegramID(ctx, chatID)
	if err == nil {
		b.sessions.Clear(chatID)
		return b.fx.Send(ctx, chatID, fmt.Sprintf(
			"Welcome back, %s! You are already registered.\n\n%s",
			student.FirstName, mainMenuText()))
	}
	if !errors.Is(err, repo.ErrStudentNotFound) {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to look up student on start")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}

	b.sessions.Set(chatID, session.State{Step: session.StepAwaitingName})
	return b.fx.Send(ctx, chatID,
		"👋 Hello! I track event participation and student ratings.\n\n"+
			"Let's get you registered. Enter your full name (for example: Smith John Edward):")
}

func (b *Bot) handleNameInput(ctx context.Context, chatID int64, username, text string) error {
	last, first, middle, ok := splitFullName(text)
	if !ok {
		return b.fx.Send(ctx, chatID,
			"That does not look like a full name. Enter at least last and first name, "+
				"letters and hyphens only (for example: Smith John Edward):")
	}

	b.sessions.Update(chatID, func(st *session.State) {
		st.Step = session.StepAwaitingCourse
		st.Username = username
		st.LastName = last
		st.FirstName = first
		st.MiddleName = middle
	})
	return b.fx.SendChoices(ctx, chatID, "Choose your course:", courseChoices(ActionCourse))
}

func courseChoices(action Action) [][]Choice {
	row := make([]Choice, 0, len(groups.Courses))
	for _, c := range groups.Courses {
		row = append(row, Choice{
			Label: fmt.Sprintf("%d course", c),
			Data:  fmt.Sprintf("%s:%d", action, c),
		})
	}
	return [][]Choice{row}
}

func (b *Bot) handleCourseSelection(ctx context.Context, upd ChoiceUpdate, course int) error {
	if !groups.ValidCourse(course) {
		return b.fx.Send(ctx, upd.ChatID, "Unknown course, choose one of the buttons.")
	}
	b.sessions.Update(upd.ChatID, func(st *session.State) {
		st.Step = session.StepAwaitingGroup
		st.Course = course
	})
	return b.showGroupsPage(ctx, upd.ChatID, upd.MessageID, course, 0, false)
}

// showGroupsPage renders one page of the course's groups, two per row, with
// navigation. The same renderer serves registration and profile editing; only
// the callback actions differ.
func (b *Bot) showGroupsPage(ctx context.Context, chatID, messageID int64, course, page int, edit bool) error {
	if !groups.ValidCourse(course) {
		return b.fx.Send(ctx, chatID, "Unknown course, choose one of the buttons.")
	}
	list := groups.ByCourse(course)

	selectAction, pageAction := ActionGroup, ActionGroupsPage
	if edit {
		selectAction, pageAction = ActionEditGroupSelect, ActionEditGroupsPage
		b.sessions.Update(chatID, func(st *session.State) {
			st.Step = session.StepEditingGroup
			st.EditingCourse = course
			st.GroupsPage = page
		})
	}

	totalPages := (len(list) + GroupsPerPage - 1) / GroupsPerPage
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	start := page * GroupsPerPage
	end := start + GroupsPerPage
	if end > len(list) {
		end = len(list)
	}

	var choices [][]Choice
	var row []Choice
	for _, g := range list[start:end] {
		row = append(row, Choice{
			Label: g.Name,
			Data:  fmt.Sprintf("%s:%d", selectAction, g.ID),
		})
		if len(row) == 2 {
			choices = append(choices, row)
			row = nil
		}
	}
	if len(row) > 0 {
		choices = append(choices, row)
	}
	if nav := pageNav(pageAction, course, page, totalPages); len(nav) > 0 {
		choices = append(choices, nav)
	}

	text := fmt.Sprintf("Choose your group (page %d of %d):", page+1, totalPages)
	return b.sendOrEdit(ctx, chatID, messageID, text, choices)
}

// pageNav builds the navigation row: previous and next where they exist, and
// a shortcut back to the first page once the reader is deep in the list.
func pageNav(action Action, course, page, totalPages int) []Choice {
	var nav []Choice
	if page > 0 {
		nav = append(nav, Choice{
			Label: "⬅️ Back",
			Data:  fmt.Sprintf("%s:%d:%d", action, course, page-1),
		})
	}
	if page > 2 {
		nav = append(nav, Choice{
			Label: "⏮ First page",
			Data:  fmt.Sprintf("%s:%d:0", action, course),
		})
	}
	if page < totalPages-1 {
		nav = append(nav, Choice{
			Label: "Next ➡️",
			Data:  fmt.Sprintf("%s:%d:%d", action, course, page+1),
		})
	}
	return nav
}

// handleGroupSelection is the terminal registration step. Creation is
// idempotent: a concurrent or repeated registration for the same account
// resolves to the already stored student.
func (b *Bot) handleGroupSelection(ctx context.Context, upd ChoiceUpdate, groupID int) error {
	state, ok := b.sessions.Get(upd.ChatID)
	if !ok || state.Step != session.StepAwaitingGroup {
		return b.fx.Send(ctx, upd.ChatID, "The registration session expired. Start over with /start")
	}

	group, found := groups.ByID(groupID)
	if !found || group.Course != state.Course {
		return b.fx.Send(ctx, upd.ChatID, "That group does not belong to your course. Choose one of the buttons.")
	}

	_, err := b.repo.CreateStudent(ctx, &model.Student{
		TelegramID: upd.ChatID,
		Username:   state.Username,
		FirstName:  state.FirstName,
		LastName:   state.LastName,
		MiddleName: state.MiddleName,
		Course:     state.Course,
		Group:      group.Name,
		Rating:     model.RatingDefault,
	})
	if err != nil && !errors.Is(err, repo.ErrDuplicateStudent) {
		b.log.Error().Err(err).Int64("chat_id", upd.ChatID).Msg("failed to register student")
		return b.fx.Send(ctx, upd.ChatID, "Registration failed, try again later.")
	}

	student, err := b.repo.GetStudentByTelegramID(ctx, upd.ChatID)
	if err != nil {
		b.log.Error().Err(err).Int64("chat_id", upd.ChatID).Msg("failed to load registered student")
		return b.fx.Send(ctx, upd.ChatID, "Registration failed, try again later.")
	}

	b.sessions.Clear(upd.ChatID)
	b.log.Info().Int64("student_id", student.ID).Int64("chat_id", upd.ChatID).
		Str("group", student.Group).Msg("student registered")

	text := fmt.Sprintf(
		"🎉 Registration complete!\n\nFull name: %s\nGroup: %s\nCourse: %d\nStarting rating: %.1f\n\n%s",
		student.FullName(), student.Group, student.Course, student.Rating, mainMenuText())
	return b.sendOrEdit(ctx, upd.ChatID, upd.MessageID, text, nil)
}

func (b *Bot) handleNameEdit(ctx context.Context, chatID int64, text string) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	last, first, middle, valid := splitFullName(text)
	if !valid {
		return b.fx.Send(ctx, chatID,
			"That does not look like a full name. Enter at least last and first name, "+
				"letters and hyphens only (for example: Smith John Edward):")
	}

	if _, err := b.repo.UpdateStudentProfile(ctx, chatID, repo.ProfileUpdate{
		LastName:   &last,
		FirstName:  &first,
		MiddleName: &middle,
	}); err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to update name")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}

	b.sessions.Clear(chatID)
	if err := b.fx.Send(ctx, chatID, "✅ Name updated."); err != nil {
		return err
	}
	return b.showProfile(ctx, chatID)
}

func (b *Bot) handleGroupEditSelection(ctx context.Context, upd ChoiceUpdate, groupID int) error {
	student, ok, err := b.requireStudent(ctx, upd.ChatID)
	if !ok {
		return err
	}
	state, ok := b.sessions.Get(upd.ChatID)
	if !ok || state.Step != session.StepEditingGroup {
		return b.fx.Send(ctx, upd.ChatID, "The edit session expired. Open /profile and try again.")
	}

	group, found := groups.ByID(groupID)
	if !found || group.Course != state.EditingCourse {
		return b.fx.Send(ctx, upd.ChatID, "That group does not belong to the chosen course. Choose one of the buttons.")
	}

	if _, err := b.repo.UpdateStudentProfile(ctx, upd.ChatID, repo.ProfileUpdate{
		Course: &group.Course,
		Group:  &group.Name,
	}); err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to update group")
		return b.fx.Send(ctx, upd.ChatID, "Something went wrong, try again later.")
	}

	b.sessions.Clear(upd.ChatID)
	if err := b.sendOrEdit(ctx, upd.ChatID, upd.MessageID,
		fmt.Sprintf("✅ Group updated: %s (course %d).", group.Name, group.Course), nil); err != nil {
		return err
	}
	return b.showProfile(ctx, upd.ChatID)
}
