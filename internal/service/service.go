package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"github.com/NegroPrimo123/Students-Bot/internal/dto"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
	"github.com/NegroPrimo123/Students-Bot/internal/review"
	"github.com/NegroPrimo123/Students-Bot/internal/stats"
	"github.com/NegroPrimo123/Students-Bot/internal/sweep"
	"github.com/NegroPrimo123/Students-Bot/pkg/validator"
)

// FileStore fetches a stored certificate by its opaque file id. The returned
// string is the content type to serve it with.
type FileStore interface {
	Download(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}

type Service interface {
	CreateEvent(ctx *ginext.Context)
	GetActiveEvents(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	GetArchivedEvents(ctx *ginext.Context)
	GetEventsByCourse(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	ArchiveEvent(ctx *ginext.Context)
	RestoreEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)

	GetPendingParticipations(ctx *ginext.Context)
	SetParticipationStatus(ctx *ginext.Context)
	DownloadCertificate(ctx *ginext.Context)

	GetStudents(ctx *ginext.Context)
	GetStudent(ctx *ginext.Context)
	GetLowRatingStudents(ctx *ginext.Context)

	GetAdminStatistics(ctx *ginext.Context)
	GetEventStatistics(ctx *ginext.Context)
	GetStudentStatistics(ctx *ginext.Context)

	RunPenaltySweep(ctx *ginext.Context)
}

type service struct {
	repo    repo.Repository
	log     *zerolog.Logger
	engine  *review.Engine
	stats   *stats.Aggregator
	sweeper *sweep.Runner
	files   FileStore
}

func NewService(repo repo.Repository, logger *zerolog.Logger, engine *review.Engine, aggregator *stats.Aggregator, sweeper *sweep.Runner, files FileStore) Service {
	return &service{
		repo:    repo,
		log:     logger,
		engine:  engine,
		stats:   aggregator,
		sweeper: sweeper,
		files:   files,
	}
}

func pathID(ctx *ginext.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse create event request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if req.PointsAwarded == 0 {
		req.PointsAwarded = 1
	}

	event := &model.Event{
		Title:         req.Title,
		Description:   req.Description,
		PointsAwarded: req.PointsAwarded,
		Course:        req.Course,
	}

	id, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event in DB")
		dto.InternalServerError(ctx)
		return
	}

	created, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to load created event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", id).Int("course", created.Course).Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, dto.NewEventResponse(created))
}

func (s *service) listEvents(ctx *ginext.Context, load func() ([]model.Event, error)) {
	events, err := load()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load events")
		dto.InternalServerError(ctx)
		return
	}
	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.NewEventResponse(&events[i]))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetActiveEvents(ctx *ginext.Context) {
	s.listEvents(ctx, func() ([]model.Event, error) { return s.repo.GetActiveEvents(ctx) })
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	s.listEvents(ctx, func() ([]model.Event, error) { return s.repo.GetAllEvents(ctx) })
}

func (s *service) GetArchivedEvents(ctx *ginext.Context) {
	s.listEvents(ctx, func() ([]model.Event, error) { return s.repo.GetArchivedEvents(ctx) })
}

func (s *service) GetEventsByCourse(ctx *ginext.Context) {
	course, err := strconv.Atoi(ctx.Param("course"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid course")
		return
	}
	s.listEvents(ctx, func() ([]model.Event, error) { return s.repo.GetEventsByCourse(ctx, course) })
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	event, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to load event")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	event, err := s.repo.UpdateEvent(ctx, id, repo.EventUpdate{
		Title:         req.Title,
		Description:   req.Description,
		PointsAwarded: req.PointsAwarded,
		Course:        req.Course,
	})
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to update event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", id).Msg("event updated successfully")
	dto.SuccessResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) setArchived(ctx *ginext.Context, archived bool) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	event, err := s.repo.SetEventArchived(ctx, id, archived)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to change event archive state")
		dto.InternalServerError(ctx)
		return
	}
	s.log.Info().Int64("event_id", id).Bool("archived", archived).Msg("event archive state changed")
	dto.SuccessResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) ArchiveEvent(ctx *ginext.Context) {
	s.setArchived(ctx, true)
}

func (s *service) RestoreEvent(ctx *ginext.Context) {
	s.setArchived(ctx, false)
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		switch {
		case errors.Is(err, repo.ErrEventNotFound):
			dto.EventNotFoundError(ctx)
		case errors.Is(err, repo.ErrEventHasParticipations):
			dto.EventHasParticipationsError(ctx)
		default:
			s.log.Error().Err(err).Int64("event_id", id).Msg("failed to delete event")
			dto.InternalServerError(ctx)
		}
		return
	}
	s.log.Info().Int64("event_id", id).Msg("event deleted")
	dto.SuccessResponse(ctx, nil)
}

// GetPendingParticipations returns the review queue with student and event
// context attached, oldest first.
func (s *service) GetPendingParticipations(ctx *ginext.Context) {
	pending, err := s.repo.GetPendingParticipations(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load pending participations")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.ParticipationResponse, 0, len(pending))
	for i := range pending {
		p := &pending[i]
		item := dto.NewParticipationResponse(p)
		if student, err := s.repo.GetStudentByID(ctx, p.StudentID); err == nil {
			sr := dto.NewStudentResponse(student)
			item.Student = &sr
		}
		if event, err := s.repo.GetEventByID(ctx, p.EventID); err == nil {
			er := dto.NewEventResponse(event)
			item.Event = &er
		}
		resp = append(resp, item)
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) SetParticipationStatus(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req dto.SetParticipationStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	result, err := s.engine.SetParticipationStatus(ctx.Request.Context(), id, model.ParticipationStatus(req.Status), req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrParticipationNotFound):
			dto.ParticipationNotFoundError(ctx)
		case errors.Is(err, review.ErrInvalidStatus):
			dto.BadResponseError(ctx, dto.StatusIncorrect, "Status must be approved or rejected")
		default:
			s.log.Error().Err(err).Int64("participation_id", id).Msg("failed to review participation")
			dto.InternalServerError(ctx)
		}
		return
	}

	item := dto.NewParticipationResponse(result.Participation)
	sr := dto.NewStudentResponse(result.Student)
	er := dto.NewEventResponse(result.Event)
	item.Student = &sr
	item.Event = &er

	dto.SuccessResponse(ctx, dto.ReviewResponse{
		Participation: item,
		RatingChanged: result.RatingChanged,
		NewRating:     result.NewRating,
	})
}

// DownloadCertificate streams the stored certificate file of a participation.
func (s *service) DownloadCertificate(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	p, err := s.repo.GetParticipationByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrParticipationNotFound) {
			dto.ParticipationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("participation_id", id).Msg("failed to load participation")
		dto.InternalServerError(ctx)
		return
	}

	reader, contentType, err := s.files.Download(ctx.Request.Context(), p.CertificateFileID)
	if err != nil {
		s.log.Error().Err(err).Str("file_id", p.CertificateFileID).Msg("failed to fetch certificate file")
		dto.InternalServerError(ctx)
		return
	}
	defer reader.Close()

	ctx.DataFromReader(200, -1, contentType, reader, nil)
}

func (s *service) studentList(ctx *ginext.Context, load func() ([]model.Student, error)) {
	students, err := load()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load students")
		dto.InternalServerError(ctx)
		return
	}
	resp := make([]dto.StudentResponse, 0, len(students))
	for i := range students {
		resp = append(resp, dto.NewStudentResponse(&students[i]))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetStudents(ctx *ginext.Context) {
	s.studentList(ctx, func() ([]model.Student, error) { return s.repo.GetAllStudents(ctx) })
}

func (s *service) GetLowRatingStudents(ctx *ginext.Context) {
	s.studentList(ctx, func() ([]model.Student, error) {
		return s.repo.GetLowRatingStudents(ctx, stats.LowRatingThreshold)
	})
}

func (s *service) GetStudent(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	student, err := s.repo.GetStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrStudentNotFound) {
			dto.StudentNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("student_id", id).Msg("failed to load student")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.NewStudentResponse(student))
}

func (s *service) GetAdminStatistics(ctx *ginext.Context) {
	stat, err := s.stats.Admin(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute admin statistics")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, stat)
}

func (s *service) GetEventStatistics(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stat, err := s.stats.Event(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.EventNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to compute event statistics")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, stat)
}

func (s *service) GetStudentStatistics(ctx *ginext.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stat, err := s.stats.Student(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrStudentNotFound) {
			dto.StudentNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int64("student_id", id).Msg("failed to compute student statistics")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, stat)
}

// RunPenaltySweep triggers the inactivity penalty outside the daily schedule.
func (s *service) RunPenaltySweep(ctx *ginext.Context) {
	result, err := s.sweeper.Run(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("manual penalty sweep failed")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.SweepResponse{
		PenalizedStudents: result.PenalizedStudents,
		RecentEvents:      result.RecentEvents,
	})
}
