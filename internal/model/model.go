package model

import "time"

type ParticipationStatus string

const (
	StatusPending  ParticipationStatus = "pending"
	StatusApproved ParticipationStatus = "approved"
	StatusRejected ParticipationStatus = "rejected"
)

// Valid reports whether s is one of the three known review statuses.
func (s ParticipationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

const (
	RatingMin     = 1.0
	RatingMax     = 5.0
	RatingDefault = 3.0
)

type Student struct {
	ID         int64     `db:"id" json:"id"`
	TelegramID int64     `db:"telegram_id" json:"telegram_id"`
	Username   string    `db:"username,omitempty" json:"username,omitempty"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	MiddleName string    `db:"middle_name,omitempty" json:"middle_name,omitempty"`
	Course     int       `db:"course" json:"course"`
	Group      string    `db:"group_name" json:"group"`
	Rating     float64   `db:"rating" json:"rating"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FullName renders "Last First Middle" with the middle name omitted when absent.
func (s *Student) FullName() string {
	name := s.LastName + " " + s.FirstName
	if s.MiddleName != "" {
		name += " " + s.MiddleName
	}
	return name
}

type Event struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description,omitempty" json:"description,omitempty"`
	PointsAwarded int        `db:"points_awarded" json:"points_awarded"`
	Course        int        `db:"course" json:"course"`
	IsArchived    bool       `db:"is_archived" json:"is_archived"`
	ArchivedAt    *time.Time `db:"archived_at,omitempty" json:"archived_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

type Participation struct {
	ID                int64               `db:"id" json:"id"`
	StudentID         int64               `db:"student_id" json:"student_id"`
	EventID           int64               `db:"event_id" json:"event_id"`
	CertificateFileID string              `db:"certificate_file_id,omitempty" json:"certificate_file_id,omitempty"`
	Status            ParticipationStatus `db:"status" json:"status"`
	AdminComment      string              `db:"admin_comment,omitempty" json:"admin_comment,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}
