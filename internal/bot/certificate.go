package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/NegroPrimo123/Students-Bot/internal/bot/session"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
)

// MaxFileSize caps certificate uploads at 20 MiB.
const MaxFileSize = 20 * 1024 * 1024

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

var allowedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
}

// validateCertificateFile checks size, extension and declared media type.
// The returned string is a user-facing rejection reason, empty when the file
// is acceptable.
func validateCertificateFile(upd FileUpdate) string {
	if upd.Size > MaxFileSize {
		return "The file is too large. Maximum size is 20 MB."
	}
	ext := strings.ToLower(filepath.Ext(upd.FileName))
	if _, ok := allowedExtensions[ext]; !ok {
		return "Unsupported file type. Send a PDF, JPG, JPEG or PNG document."
	}
	if upd.MimeType != "" {
		if _, ok := allowedMimeTypes[strings.ToLower(upd.MimeType)]; !ok {
			return "Unsupported file type. Send a PDF, JPG, JPEG or PNG document."
		}
	}
	return ""
}

// startCertificateUpload begins the certificate-first flow: the student
// uploads the document first and picks the event afterwards.
func (b *Bot) startCertificateUpload(ctx context.Context, chatID int64) error {
	_, ok, err := b.requireStudent(ctx, chatID)
	if !ok {
		return err
	}
	b.sessions.Update(chatID, func(st *session.State) {
		st.Step = session.StepAwaitingCertificate
		st.SelectedEventID = 0
	})
	return b.fx.Send(ctx, chatID,
		"📎 Send your participation certificate (PDF, JPG, JPEG or PNG, up to 20 MB).")
}

// HandleFile accepts an uploaded document. Depending on the session, the file
// either completes an event-first submission immediately or is parked until
// the student picks an event.
func (b *Bot) HandleFile(ctx context.Context, upd FileUpdate) error {
	student, ok, err := b.requireStudent(ctx, upd.ChatID)
	if !ok {
		return err
	}

	if reason := validateCertificateFile(upd); reason != "" {
		return b.fx.Send(ctx, upd.ChatID, reason)
	}

	state, _ := b.sessions.Get(upd.ChatID)
	if state.Step == session.StepAwaitingEventCertificate && state.SelectedEventID != 0 {
		return b.submitParticipation(ctx, upd.ChatID, 0, student, state.SelectedEventID, upd.FileID)
	}

	b.sessions.Update(upd.ChatID, func(st *session.State) {
		st.Step = session.StepCertificateUploaded
		st.CertificateFileID = upd.FileID
		st.CertificateFileName = upd.FileName
	})
	return b.fx.SendChoices(ctx, upd.ChatID,
		fmt.Sprintf("📎 Got %s. Now pick the event it belongs to:", upd.FileName),
		[][]Choice{{{Label: "Choose event", Data: string(ActionSelectEventForCert)}}})
}

func (b *Bot) handleSelectEventForCertificate(ctx context.Context, upd ChoiceUpdate) error {
	state, ok := b.sessions.Get(upd.ChatID)
	if !ok || state.CertificateFileID == "" {
		return b.fx.Send(ctx, upd.ChatID,
			"There is no uploaded certificate in this session. Send the file first with /send_certificate")
	}
	return b.showEventsForCertificate(ctx, upd.ChatID, upd.MessageID, 0)
}

// showEventsForCertificate pages through the student's course events so the
// parked certificate can be attached to one of them.
func (b *Bot) showEventsForCertificate(ctx context.Context, chatID, messageID int64, page int) error {
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

	totalPages := (len(events) + EventsPerPage - 1) / EventsPerPage
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	start := page * EventsPerPage
	end := start + EventsPerPage
	if end > len(events) {
		end = len(events)
	}

	var choices [][]Choice
	for _, event := range events[start:end] {
		choices = append(choices, []Choice{{
			Label: fmt.Sprintf("%s (%d points)", event.Title, event.PointsAwarded),
			Data:  fmt.Sprintf("%s:%d", ActionCertEvent, event.ID),
		}})
	}
	if nav := certPageNav(page, totalPages); len(nav) > 0 {
		choices = append(choices, nav)
	}

	text := fmt.Sprintf("Choose the event for your certificate (page %d of %d):", page+1, totalPages)
	return b.sendOrEdit(ctx, chatID, messageID, text, choices)
}

func certPageNav(page, totalPages int) []Choice {
	var nav []Choice
	if page > 0 {
		nav = append(nav, Choice{
			Label: "⬅️ Back",
			Data:  fmt.Sprintf("%s:%d", ActionCertEventsPage, page-1),
		})
	}
	if page > 2 {
		nav = append(nav, Choice{
			Label: "⏮ First page",
			Data:  fmt.Sprintf("%s:0", ActionCertEventsPage),
		})
	}
	if page < totalPages-1 {
		nav = append(nav, Choice{
			Label: "Next ➡️",
			Data:  fmt.Sprintf("%s:%d", ActionCertEventsPage, page+1),
		})
	}
	return nav
}

// handleCertificateEventSelection completes the certificate-first flow.
func (b *Bot) handleCertificateEventSelection(ctx context.Context, upd ChoiceUpdate, eventID int64) error {
	student, ok, err := b.requireStudent(ctx, upd.ChatID)
	if !ok {
		return err
	}
	state, ok := b.sessions.Get(upd.ChatID)
	if !ok || state.CertificateFileID == "" {
		return b.fx.Send(ctx, upd.ChatID,
			"There is no uploaded certificate in this session. Send the file first with /send_certificate")
	}
	return b.submitParticipation(ctx, upd.ChatID, upd.MessageID, student, eventID, state.CertificateFileID)
}

// handleParticipate begins the event-first flow from an event card button.
func (b *Bot) handleParticipate(ctx context.Context, upd ChoiceUpdate, eventID int64) error {
	student, ok, err := b.requireStudent(ctx, upd.ChatID)
	if !ok {
		return err
	}
	event, err := b.repo.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return b.fx.Send(ctx, upd.ChatID, "This event no longer exists.")
		}
		b.log.Error().Err(err).Int64("event_id", eventID).Msg("failed to load event")
		return b.fx.Send(ctx, upd.ChatID, "Something went wrong, try again later.")
	}

	exists, err := b.repo.HasParticipation(ctx, student.ID, eventID)
	if err != nil {
		b.log.Error().Err(err).Int64("event_id", eventID).Msg("failed to check participation")
		return b.fx.Send(ctx, upd.ChatID, "Something went wrong, try again later.")
	}
	if exists {
		return b.fx.Send(ctx, upd.ChatID,
			"You already take part in this event.\n\nEach student can participate in an event only once.")
	}

	b.sessions.Update(upd.ChatID, func(st *session.State) {
		st.Step = session.StepAwaitingEventCertificate
		st.SelectedEventID = eventID
	})
	return b.fx.Send(ctx, upd.ChatID, fmt.Sprintf(
		"📎 Send your participation certificate for \"%s\" (PDF, JPG, JPEG or PNG, up to 20 MB).",
		event.Title))
}

// submitParticipation is the single terminal step of both intake flows: it
// records the pending participation and resets the certificate session.
func (b *Bot) submitParticipation(ctx context.Context, chatID, messageID int64, student *model.Student, eventID int64, fileID string) error {
	event, err := b.repo.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return b.fx.Send(ctx, chatID, "This event no longer exists.")
		}
		b.log.Error().Err(err).Int64("event_id", eventID).Msg("failed to load event")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}

	_, err = b.repo.CreateParticipation(ctx, &model.Participation{
		StudentID:         student.ID,
		EventID:           eventID,
		CertificateFileID: fileID,
		Status:            model.StatusPending,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateParticipation) {
			return b.fx.Send(ctx, chatID,
				"You already take part in this event.\n\nEach student can participate in an event only once.")
		}
		b.log.Error().Err(err).Int64("event_id", eventID).Int64("student_id", student.ID).
			Msg("failed to create participation")
		return b.fx.Send(ctx, chatID, "Something went wrong, try again later.")
	}

	b.sessions.Clear(chatID)
	b.log.Info().Int64("student_id", student.ID).Int64("event_id", eventID).
		Msg("participation submitted for review")

	text := fmt.Sprintf(
		"✅ Certificate submitted for \"%s\"!\n\nStatus: awaiting review. "+
			"You will get a message once an administrator checks it.",
		event.Title)
	return b.sendOrEdit(ctx, chatID, messageID, text, nil)
}
