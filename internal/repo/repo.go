package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"github.com/NegroPrimo123/Students-Bot/internal/model"
)

var (
	ErrStudentNotFound        = errors.New("student not found")
	ErrDuplicateStudent       = errors.New("student already registered")
	ErrEventNotFound          = errors.New("event not found")
	ErrEventHasParticipations = errors.New("event has participations")
	ErrParticipationNotFound  = errors.New("participation not found")
	ErrDuplicateParticipation = errors.New("duplicate participation")
)

// RatingFunc computes the student's new rating inside a review transaction.
// It receives the participation's status as currently persisted, the event's
// point value and the student's current (already healed) rating. The second
// return value reports whether the rating actually changes.
type RatingFunc func(oldStatus model.ParticipationStatus, points int, current float64) (float64, bool)

// ReviewResult carries everything a caller needs after a status transition:
// the rows as they were committed plus what the transition did to the rating.
type ReviewResult struct {
	Participation *model.Participation
	Student       *model.Student
	Event         *model.Event
	OldStatus     model.ParticipationStatus
	RatingChanged bool
	NewRating     float64
}

type ProfileUpdate struct {
	FirstName  *string
	LastName   *string
	MiddleName *string
	Course     *int
	Group      *string
}

type EventUpdate struct {
	Title         *string
	Description   *string
	PointsAwarded *int
	Course        *int
}

type Repository interface {
	CreateStudent(ctx context.Context, s *model.Student) (int64, error)
	GetStudentByTelegramID(ctx context.Context, telegramID int64) (*model.Student, error)
	GetStudentByID(ctx context.Context, id int64) (*model.Student, error)
	GetAllStudents(ctx context.Context) ([]model.Student, error)
	GetStudentsByCourse(ctx context.Context, course int) ([]model.Student, error)
	GetLowRatingStudents(ctx context.Context, below float64) ([]model.Student, error)
	UpdateStudentProfile(ctx context.Context, telegramID int64, upd ProfileUpdate) (*model.Student, error)
	UpdateStudentRatingTx(ctx context.Context, studentID int64, apply func(current float64) float64) (float64, error)
	CountStudents(ctx context.Context) (int, error)
	AverageRating(ctx context.Context) (float64, error)

	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetActiveEvents(ctx context.Context) ([]model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	GetArchivedEvents(ctx context.Context) ([]model.Event, error)
	GetEventsByCourse(ctx context.Context, course int) ([]model.Event, error)
	GetRecentEvents(ctx context.Context, since time.Time) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id int64, upd EventUpdate) (*model.Event, error)
	SetEventArchived(ctx context.Context, id int64, archived bool) (*model.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	CountEvents(ctx context.Context) (int, error)

	CreateParticipation(ctx context.Context, p *model.Participation) (int64, error)
	GetParticipationByID(ctx context.Context, id int64) (*model.Participation, error)
	GetPendingParticipations(ctx context.Context) ([]model.Participation, error)
	GetParticipationsByStudent(ctx context.Context, studentID int64) ([]model.Participation, error)
	GetParticipationsByEvent(ctx context.Context, eventID int64) ([]model.Participation, error)
	HasParticipation(ctx context.Context, studentID, eventID int64) (bool, error)
	CountParticipations(ctx context.Context) (int, error)
	CountParticipationsByStatus(ctx context.Context, status model.ParticipationStatus) (int, error)
	StudentIDsWithEventSince(ctx context.Context, since time.Time) (map[int64]struct{}, error)
	ReviewParticipationTx(ctx context.Context, id int64, newStatus model.ParticipationStatus, comment string, rate RatingFunc) (*ReviewResult, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// healRating turns a NULL or NaN stored rating into the default and clamps
// stray values back into range. The repaired value is persisted out-of-band;
// a read must never surface an invalid rating.
func (r *repository) healRating(studentID int64, raw sql.NullFloat64) float64 {
	rating := raw.Float64
	healed := false
	if !raw.Valid || math.IsNaN(rating) {
		rating = model.RatingDefault
		healed = true
	} else if rating < model.RatingMin {
		rating = model.RatingMin
		healed = true
	} else if rating > model.RatingMax {
		rating = model.RatingMax
		healed = true
	}
	if healed {
		r.log.Warn().Int64("student_id", studentID).Float64("rating", rating).
			Msg("repaired invalid student rating")
		if _, err := r.db.ExecContext(context.Background(),
			`UPDATE students SET rating = $1 WHERE id = $2`, rating, studentID); err != nil {
			r.log.Error().Err(err).Int64("student_id", studentID).Msg("failed to persist repaired rating")
		}
	}
	return rating
}

const studentColumns = `id, telegram_id, username, first_name, last_name, middle_name, course, group_name, rating, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repository) scanStudent(row rowScanner) (*model.Student, error) {
	var (
		s          model.Student
		username   sql.NullString
		middleName sql.NullString
		rating     sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID, &s.TelegramID, &username, &s.FirstName, &s.LastName,
		&middleName, &s.Course, &s.Group, &rating, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.Username = username.String
	s.MiddleName = middleName.String
	s.Rating = r.healRating(s.ID, rating)
	return &s, nil
}

func (r *repository) CreateStudent(ctx context.Context, s *model.Student) (int64, error) {
	query := `
		INSERT INTO students (telegram_id, username, first_name, last_name, middle_name, course, group_name, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		s.TelegramID, s.Username, s.FirstName, s.LastName, s.MiddleName,
		s.Course, s.Group, model.RatingDefault,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateStudent
		}
		return 0, fmt.Errorf("failed to create student: %w", err)
	}
	return id, nil
}

func (r *repository) GetStudentByTelegramID(ctx context.Context, telegramID int64) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE telegram_id = $1`, telegramID)
	s, err := r.scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

func (r *repository) GetStudentByID(ctx context.Context, id int64) (*model.Student, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := r.scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return s, nil
}

func (r *repository) listStudents(ctx context.Context, query string, args ...any) ([]model.Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

func (r *repository) GetAllStudents(ctx context.Context) ([]model.Student, error) {
	return r.listStudents(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at ASC`)
}

func (r *repository) GetStudentsByCourse(ctx context.Context, course int) ([]model.Student, error) {
	return r.listStudents(ctx,
		`SELECT `+studentColumns+` FROM students WHERE course = $1 ORDER BY created_at ASC`, course)
}

func (r *repository) GetLowRatingStudents(ctx context.Context, below float64) ([]model.Student, error) {
	return r.listStudents(ctx,
		`SELECT `+studentColumns+` FROM students WHERE rating < $1 ORDER BY rating ASC`, below)
}

func (r *repository) UpdateStudentProfile(ctx context.Context, telegramID int64, upd ProfileUpdate) (*model.Student, error) {
	query := `
		UPDATE students SET
			first_name  = COALESCE($2, first_name),
			last_name   = COALESCE($3, last_name),
			middle_name = COALESCE($4, middle_name),
			course      = COALESCE($5, course),
			group_name  = COALESCE($6, group_name)
		WHERE telegram_id = $1
		RETURNING ` + studentColumns
	row := r.db.QueryRowContext(ctx, query,
		telegramID, upd.FirstName, upd.LastName, upd.MiddleName, upd.Course, upd.Group)
	s, err := r.scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to update student profile: %w", err)
	}
	return s, nil
}

// UpdateStudentRatingTx applies a read-current -> compute -> write cycle under a
// row lock so concurrent rating mutations cannot lose updates.
func (r *repository) UpdateStudentRatingTx(ctx context.Context, studentID int64, apply func(current float64) float64) (float64, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var raw sql.NullFloat64
	err = tx.QueryRowContext(ctx,
		`SELECT rating FROM students WHERE id = $1 FOR UPDATE`, studentID).Scan(&raw)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrStudentNotFound
		}
		return 0, fmt.Errorf("failed to lock student row: %w", err)
	}

	current := raw.Float64
	if !raw.Valid || math.IsNaN(current) {
		current = model.RatingDefault
	}

	newRating := apply(current)
	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET rating = $1 WHERE id = $2`, newRating, studentID); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to update rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rating update: %w", err)
	}
	return newRating, nil
}

func (r *repository) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

func (r *repository) AverageRating(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `SELECT AVG(rating) FROM students`).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average rating: %w", err)
	}
	if !avg.Valid {
		return model.RatingDefault, nil
	}
	return avg.Float64, nil
}

const eventColumns = `id, title, description, points_awarded, course, is_archived, archived_at, created_at`

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e           model.Event
		description sql.NullString
		archivedAt  sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.Title, &description, &e.PointsAwarded, &e.Course,
		&e.IsArchived, &archivedAt, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Description = description.String
	if archivedAt.Valid {
		t := archivedAt.Time
		e.ArchivedAt = &t
	}
	return &e, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (title, description, points_awarded, course)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	points := e.PointsAwarded
	if points <= 0 {
		points = 1
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, points, e.Course).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *repository) listEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *repository) GetActiveEvents(ctx context.Context) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE is_archived = false ORDER BY created_at DESC`)
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
}

func (r *repository) GetArchivedEvents(ctx context.Context) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE is_archived = true ORDER BY archived_at DESC`)
}

func (r *repository) GetEventsByCourse(ctx context.Context, course int) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE course = $1 AND is_archived = false ORDER BY created_at DESC`,
		course)
}

func (r *repository) GetRecentEvents(ctx context.Context, since time.Time) ([]model.Event, error) {
	return r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE is_archived = false AND created_at >= $1 ORDER BY created_at DESC`,
		since)
}

func (r *repository) UpdateEvent(ctx context.Context, id int64, upd EventUpdate) (*model.Event, error) {
	query := `
		UPDATE events SET
			title          = COALESCE($2, title),
			description    = COALESCE($3, description),
			points_awarded = COALESCE($4, points_awarded),
			course         = COALESCE($5, course)
		WHERE id = $1
		RETURNING ` + eventColumns
	row := r.db.QueryRowContext(ctx, query, id, upd.Title, upd.Description, upd.PointsAwarded, upd.Course)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

func (r *repository) SetEventArchived(ctx context.Context, id int64, archived bool) (*model.Event, error) {
	query := `
		UPDATE events SET
			is_archived = $2,
			archived_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		WHERE id = $1
		RETURNING ` + eventColumns
	row := r.db.QueryRowContext(ctx, query, id, archived)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to set event archived state: %w", err)
	}
	return e, nil
}

// DeleteEvent removes an event only when nothing references it. The count and
// the delete run in one transaction so a participation created in between
// cannot be orphaned.
func (r *repository) DeleteEvent(ctx context.Context, id int64) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1 FOR UPDATE)`, id).Scan(&exists); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to lock event: %w", err)
	}
	if !exists {
		_ = tx.Rollback()
		return ErrEventNotFound
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE event_id = $1`, id).Scan(&count); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to count participations: %w", err)
	}
	if count > 0 {
		_ = tx.Rollback()
		return ErrEventHasParticipations
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event deletion: %w", err)
	}
	return nil
}

func (r *repository) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

const participationColumns = `id, student_id, event_id, certificate_file_id, status, admin_comment, created_at`

func scanParticipation(row rowScanner) (*model.Participation, error) {
	var (
		p       model.Participation
		fileID  sql.NullString
		comment sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.StudentID, &p.EventID, &fileID, &p.Status, &comment, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.CertificateFileID = fileID.String
	p.AdminComment = comment.String
	return &p, nil
}

func (r *repository) CreateParticipation(ctx context.Context, p *model.Participation) (int64, error) {
	query := `
		INSERT INTO participations (student_id, event_id, certificate_file_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	status := p.Status
	if status == "" {
		status = model.StatusPending
	}
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.StudentID, p.EventID, p.CertificateFileID, status).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateParticipation
		}
		return 0, fmt.Errorf("failed to create participation: %w", err)
	}
	return id, nil
}

func (r *repository) GetParticipationByID(ctx context.Context, id int64) (*model.Participation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE id = $1`, id)
	p, err := scanParticipation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return p, nil
}

func (r *repository) listParticipations(ctx context.Context, query string, args ...any) ([]model.Participation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	var parts []model.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}
		parts = append(parts, *p)
	}
	return parts, rows.Err()
}

func (r *repository) GetPendingParticipations(ctx context.Context) ([]model.Participation, error) {
	return r.listParticipations(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE status = $1 ORDER BY created_at DESC`,
		model.StatusPending)
}

func (r *repository) GetParticipationsByStudent(ctx context.Context, studentID int64) ([]model.Participation, error) {
	return r.listParticipations(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE student_id = $1 ORDER BY created_at DESC`,
		studentID)
}

func (r *repository) GetParticipationsByEvent(ctx context.Context, eventID int64) ([]model.Participation, error) {
	return r.listParticipations(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE event_id = $1 ORDER BY created_at DESC`,
		eventID)
}

func (r *repository) HasParticipation(ctx context.Context, studentID, eventID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participations WHERE student_id = $1 AND event_id = $2)`,
		studentID, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}
	return exists, nil
}

func (r *repository) CountParticipations(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participations: %w", err)
	}
	return count, nil
}

func (r *repository) CountParticipationsByStatus(ctx context.Context, status model.ParticipationStatus) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE status = $1`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participations by status: %w", err)
	}
	return count, nil
}

func (r *repository) StudentIDsWithEventSince(ctx context.Context, since time.Time) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT p.student_id
		FROM participations p
		JOIN events e ON e.id = p.event_id
		WHERE e.is_archived = false AND e.created_at >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent participants: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ReviewParticipationTx performs a status transition atomically: the
// participation, its event and its student are locked, the caller-supplied
// RatingFunc decides the new rating against the persisted old status, and both
// rows are written in the same transaction. Concurrent reviews of the same
// participation therefore serialize instead of racing on the rating.
func (r *repository) ReviewParticipationTx(ctx context.Context, id int64, newStatus model.ParticipationStatus, comment string, rate RatingFunc) (*ReviewResult, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE id = $1 FOR UPDATE`, id)
	part, err := scanParticipation(row)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to lock participation: %w", err)
	}

	event, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, part.EventID))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to load event for review: %w", err)
	}

	var (
		student    model.Student
		username   sql.NullString
		middleName sql.NullString
		rawRating  sql.NullFloat64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1 FOR UPDATE`, part.StudentID).Scan(
		&student.ID, &student.TelegramID, &username, &student.FirstName, &student.LastName,
		&middleName, &student.Course, &student.Group, &rawRating, &student.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to lock student for review: %w", err)
	}
	student.Username = username.String
	student.MiddleName = middleName.String
	student.Rating = rawRating.Float64
	if !rawRating.Valid || math.IsNaN(student.Rating) {
		student.Rating = model.RatingDefault
	}

	oldStatus := part.Status
	newRating, changed := rate(oldStatus, event.PointsAwarded, student.Rating)

	part.Status = newStatus
	if comment != "" {
		part.AdminComment = comment
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE participations SET status = $1, admin_comment = $2 WHERE id = $3`,
		part.Status, part.AdminComment, part.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update participation: %w", err)
	}

	if changed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE students SET rating = $1 WHERE id = $2`, newRating, student.ID); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to update student rating: %w", err)
		}
		student.Rating = newRating
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review transaction: %w", err)
	}

	return &ReviewResult{
		Participation: part,
		Student:       &student,
		Event:         event,
		OldStatus:     oldStatus,
		RatingChanged: changed,
		NewRating:     student.Rating,
	}, nil
}
