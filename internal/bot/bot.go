// Package bot implements the conversational flows: registration, profile
// editing, event browsing and certificate intake. It talks to the messenger
// only through the Effector interface and keeps all multi-step state in the
// session store.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/NegroPrimo123/Students-Bot/internal/bot/session"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
	"github.com/NegroPrimo123/Students-Bot/internal/review"
	"github.com/NegroPrimo123/Students-Bot/internal/stats"
)

const (
	EventsPerPage = 6
	GroupsPerPage = 10
)

type Bot struct {
	repo     repo.Repository
	sessions *session.Store
	fx       Effector
	stats    *stats.Aggregator
	log      *zerolog.Logger
}

func New(r repo.Repository, sessions *session.Store, fx Effector, aggregator *stats.Aggregator, log *zerolog.Logger) *Bot {
	return &Bot{repo: r, sessions: sessions, fx: fx, stats: aggregator, log: log}
}

// HandleCommand processes a slash command ("start", "events", ...).
func (b *Bot) HandleCommand(ctx context.Context, chatID int64, username, command string) error {
	switch command {
	case "start":
		return b.handleStart(ctx, chatID, username)
	case "events":
		return b.showEventsWithParticipation(ctx, chatID)
	case "rating":
		return b.showRating(ctx, chatID)
	case "profile", "edit_profile":
		return b.showProfile(ctx, chatID)
	case "my_participations":
		return b.showMyParticipations(ctx, chatID)
	case "stats":
		return b.showMyStats(ctx, chatID)
	case "send_certificate":
		return b.startCertificateUpload(ctx, chatID)
	default:
		return b.fx.Send(ctx, chatID, "Unknown command. "+mainMenuText())
	}
}

// HandleText routes free text by the current session step.
func (b *Bot) HandleText(ctx context.Context, upd TextUpdate) error {
	state, ok := b.sessions.Get(upd.ChatID)
	if !ok {
		return b.fx.Send(ctx, upd.ChatID, mainMenuText())
	}

	switch state.Step {
	case session.StepAwaitingName:
		return b.handleNameInput(ctx, upd.ChatID, upd.Username, upd.Text)
	case session.StepEditingName:
		return b.handleNameEdit(ctx, upd.ChatID, upd.Text)
	default:
		return b.fx.Send(ctx, upd.ChatID, mainMenuText())
	}
}

// HandleChoice parses and dispatches one button press. Unknown or malformed
// payloads are logged and dropped; a stale button must never break the bot.
func (b *Bot) HandleChoice(ctx context.Context, upd ChoiceUpdate) error {
	cb, err := ParseCallback(upd.Data)
	if err != nil {
		b.log.Warn().Str("data", upd.Data).Msg("ignoring unparseable callback")
		return nil
	}

	switch cb.Action {
	case ActionCourse:
		return b.handleCourseSelection(ctx, upd, cb.Course)
	case ActionGroup:
		return b.handleGroupSelection(ctx, upd, cb.GroupID)
	case ActionGroupsPage:
		return b.showGroupsPage(ctx, upd.ChatID, upd.MessageID, cb.Course, cb.Page, false)
	case ActionEditName:
		b.sessions.Set(upd.ChatID, session.State{Step: session.StepEditingName})
		return b.fx.Send(ctx, upd.ChatID, "Enter your new full name (for example: Smith John Edward):")
	case ActionEditGroup:
		return b.fx.SendChoices(ctx, upd.ChatID, "Choose your course:", courseChoices(ActionEditCourse))
	case ActionEditCourse:
		return b.showGroupsPage(ctx, upd.ChatID, upd.MessageID, cb.Course, 0, true)
	case ActionEditGroupsPage:
		return b.showGroupsPage(ctx, upd.ChatID, upd.MessageID, cb.Course, cb.Page, true)
	case ActionEditGroupSelect:
		return b.handleGroupEditSelection(ctx, upd, cb.GroupID)
	case ActionSelectEventForCert:
		return b.handleSelectEventForCertificate(ctx, upd)
	case ActionCertEventsPage:
		return b.showEventsForCertificate(ctx, upd.ChatID, upd.MessageID, cb.Page)
	case ActionCertEvent:
		return b.handleCertificateEventSelection(ctx, upd, cb.EventID)
	case ActionParticipate:
		return b.handleParticipate(ctx, upd, cb.EventID)
	case ActionAlreadyIn:
		return b.fx.Send(ctx, upd.ChatID,
			"You already take part in this event.\n\nEach student can participate in an event only once.")
	default:
		b.log.Warn().Str("data", upd.Data).Msg("ignoring unhandled callback action")
		return nil
	}
}

// requireStudent resolves the conversant to a registered student or prompts
// for registration. The bool reports whether the caller may proceed.
func (b *Bot) requireStudent(ctx context.Context, chatID int64) (*model.Student, bool, error) {
	student, err := b.repo.GetStudentByTelegramID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrStudentNotFound) {
			return nil, false, b.fx.Send(ctx, chatID, "Please register first with /start")
		}
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to load student")
		return nil, false, b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	return student, true, nil
}

func (b *Bot) showProfile(ctx context.Context, chatID int64) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	text := fmt.Sprintf(
		"👤 Your profile:\n\nFull name: %s\nGroup: %s\nCourse: %d\nRating: %.2f/5.0",
		student.FullName(), student.Group, student.Course, student.Rating)
	return b.fx.SendChoices(ctx, chatID, text, [][]Choice{
		{{Label: "✏️ Edit name", Data: string(ActionEditName)}},
		{{Label: "✏️ Edit group", Data: string(ActionEditGroup)}},
	})
}

func (b *Bot) showRating(ctx context.Context, chatID int64) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	participations, err := b.repo.GetParticipationsByStudent(ctx, student.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to load participations")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	approved := 0
	for _, p := range participations {
		if p.Status == model.StatusApproved {
			approved++
		}
	}
	return b.fx.Send(ctx, chatID, fmt.Sprintf(
		"⭐ Your rating: %.2f/5.0\n✅ Approved participations: %d\n\n%s",
		student.Rating, approved, ratingMessage(student.Rating)))
}

func ratingMessage(rating float64) string {
	switch {
	case rating < 3:
		return "⚠️ Your rating is below 3.0! Take part in events to bring it back up."
	case rating < 4:
		return "📈 Good result! Keep participating in events."
	default:
		return "🎉 Excellent rating, keep it up!"
	}
}

func (b *Bot) showMyStats(ctx context.Context, chatID int64) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	s, err := b.stats.Student(ctx, student.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to compute student statistics")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	return b.fx.Send(ctx, chatID, fmt.Sprintf(
		"📊 Your statistics:\n\nParticipations: %d\n✅ Approved: %d\n⏳ Pending: %d\n❌ Rejected: %d\n"+
			"Success rate: %s\nPoints earned: %d",
		s.TotalParticipations, s.Approved, s.Pending, s.Rejected, s.SuccessRate, s.TotalPoints))
}

func (b *Bot) showMyParticipations(ctx context.Context, chatID int64) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	participations, err := b.repo.GetParticipationsByStudent(ctx, student.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to load participations")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	if len(participations) == 0 {
		return b.fx.Send(ctx, chatID, "You have not taken part in any events yet.")
	}

	var sb strings.Builder
	sb.WriteString("📅 Your event participations:\n\n")
	for _, p := range participations {
		event, err := b.repo.GetEventByID(ctx, p.EventID)
		if err != nil {
			continue
		}
		if event.IsArchived {
			sb.WriteString("📁 ")
		}
		sb.WriteString(statusEmoji(p.Status) + " " + event.Title + "\n")
		sb.WriteString("Status: " + review.StatusText(p.Status) + "\n")
		if p.AdminComment != "" {
			sb.WriteString("Comment: " + p.AdminComment + "\n")
		}
		sb.WriteString("Date: " + p.CreatedAt.Format("02.01.2006") + "\n\n")
	}
	return b.fx.Send(ctx, chatID, sb.String())
}

func statusEmoji(s model.ParticipationStatus) string {
	switch s {
	case model.StatusApproved:
		return "✅"
	case model.StatusRejected:
		return "❌"
	default:
		return "⏳"
	}
}

// showEventsWithParticipation lists the student's course events, one message
// per event, with a participate button unless a participation already exists.
func (b *Bot) showEventsWithParticipation(ctx context.Context, chatID int64) error {
	student, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	events, err := b.repo.GetEventsByCourse(ctx, student.Course)
	if err != nil {
		b.log.Error().Err(err).Int("course", student.Course).Msg("failed to load events")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	if len(events) == 0 {
		return b.fx.Send(ctx, chatID, "There are no events for your course yet.")
	}

	participations, err := b.repo.GetParticipationsByStudent(ctx, student.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("student_id", student.ID).Msg("failed to load participations")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}
	participating := make(map[int64]struct{}, len(participations))
	for _, p := range participations {
		participating[p.EventID] = struct{}{}
	}

	for _, event := range events {
		choice := Choice{
			Label: "Participate ✅",
			Data:  fmt.Sprintf("%s:%d", ActionParticipate, event.ID),
		}
		if _, ok := participating[event.ID]; ok {
			choice = Choice{Label: "✅ Already participating", Data: string(ActionAlreadyIn)}
		}
		text := fmt.Sprintf("📅 %s\n\n%s\n\nPoints: %d", event.Title, event.Description, event.PointsAwarded)
		if err := b.fx.SendChoices(ctx, chatID, text, [][]Choice{{choice}}); err != nil {
			return err
		}
	}
	return nil
}

func mainMenuText() string {
	return "Available commands:\n" +
		"/events — events for your course\n" +
		"/rating — your rating\n" +
		"/my_participations — your submissions\n" +
		"/send_certificate — upload a certificate\n" +
		"/stats — your statistics\n" +
		"/profile — your profile"
}

// sendOrEdit edits the originating message when the interaction came from a
// button, falling back to a fresh message.
func (b *Bot) sendOrEdit(ctx context.Context, chatID, messageID int64, text string, choices [][]Choice) error {
	if messageID != 0 {
		if err := b.fx.Edit(ctx, chatID, messageID, text, choices); err == nil {
			return nil
		}
	}
	return b.fx.SendChoices(ctx, chatID, text, choices)
}
