package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound          = "EVENT_NOT_FOUND"
	EventHasParticipants   = "EVENT_HAS_PARTICIPATIONS"
	StudentNotFound        = "STUDENT_NOT_FOUND"
	ParticipationNotFound  = "PARTICIPATION_NOT_FOUND"
	ParticipationDuplicate = "PARTICIPATION_DUPLICATE"
	StatusIncorrect        = "STATUS_INCORRECT"
)

type CreateEventRequest struct {
	Title         string `json:"title" validate:"required,min=3,max=255"`
	Description   string `json:"description"`
	PointsAwarded int    `json:"points_awarded" validate:"omitempty,gte=1"`
	Course        int    `json:"course" validate:"required,course"`
}

type UpdateEventRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string `json:"description"`
	PointsAwarded *int    `json:"points_awarded" validate:"omitempty,gte=1"`
	Course        *int    `json:"course" validate:"omitempty,course"`
}

type SetParticipationStatusRequest struct {
	Status  string `json:"status" validate:"required,review_status"`
	Comment string `json:"comment" validate:"max=1000"`
}

type EventResponse struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PointsAwarded int        `json:"points_awarded"`
	Course        int        `json:"course"`
	IsArchived    bool       `json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type StudentResponse struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FullName   string    `json:"full_name"`
	Course     int       `json:"course"`
	Group      string    `json:"group"`
	Rating     float64   `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

type ParticipationResponse struct {
	ID                int64            `json:"id"`
	Status            string           `json:"status"`
	AdminComment      string           `json:"admin_comment,omitempty"`
	CertificateFileID string           `json:"certificate_file_id"`
	CreatedAt         time.Time        `json:"created_at"`
	Student           *StudentResponse `json:"student,omitempty"`
	Event             *EventResponse   `json:"event,omitempty"`
}

type ReviewResponse struct {
	Participation ParticipationResponse `json:"participation"`
	RatingChanged bool                  `json:"rating_changed"`
	NewRating     float64               `json:"new_rating"`
}

type SweepResponse struct {
	PenalizedStudents int `json:"penalized_students"`
	RecentEvents      int `json:"recent_events"`
}

func NewEventResponse(e *model.Event) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		PointsAwarded: e.PointsAwarded,
		Course:        e.Course,
		IsArchived:    e.IsArchived,
		ArchivedAt:    e.ArchivedAt,
		CreatedAt:     e.CreatedAt,
	}
}

func NewStudentResponse(s *model.Student) StudentResponse {
	return StudentResponse{
		ID:         s.ID,
		TelegramID: s.TelegramID,
		Username:   s.Username,
		FullName:   s.FullName(),
		Course:     s.Course,
		Group:      s.Group,
		Rating:     s.Rating,
		CreatedAt:  s.CreatedAt,
	}
}

func NewParticipationResponse(p *model.Participation) ParticipationResponse {
	return ParticipationResponse{
		ID:                p.ID,
		Status:            string(p.Status),
		AdminComment:      p.AdminComment,
		CertificateFileID: p.CertificateFileID,
		CreatedAt:         p.CreatedAt,
	}
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func EventNotFoundError(c *ginext.Context) {
	BadResponseError(c, EventNotFound, "Event not found")
}

func EventHasParticipationsError(c *ginext.Context) {
	BadResponseError(c, EventHasParticipants, "Event has participations and can only be archived")
}

func StudentNotFoundError(c *ginext.Context) {
	BadResponseError(c, StudentNotFound, "Student not found")
}

func ParticipationNotFoundError(c *ginext.Context) {
	BadResponseError(c, ParticipationNotFound, "Participation not found")
}

func ParticipationDuplicateError(c *ginext.Context) {
	BadResponseError(c, ParticipationDuplicate, "Student already participates in this event")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
