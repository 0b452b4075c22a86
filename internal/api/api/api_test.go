package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NegroPrimo123/Students-Bot/internal/dto"
	"github.com/NegroPrimo123/Students-Bot/internal/model"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
	"github.com/NegroPrimo123/Students-Bot/internal/review"
	"github.com/NegroPrimo123/Students-Bot/internal/service"
	"github.com/NegroPrimo123/Students-Bot/internal/stats"
	"github.com/NegroPrimo123/Students-Bot/internal/sweep"
)

const testToken = "secret"

type silentNotifier struct{}

func (silentNotifier) Notify(int64, string) {}

type stubFileStore struct{}

func (stubFileStore) Download(context.Context, string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("certificate-bytes")), "application/pdf", nil
}

func newTestServer(t *testing.T) (http.Handler, *repo.Memory) {
	t.Helper()
	mem := repo.NewMemory()
	log := zerolog.Nop()
	engine := review.NewEngine(mem, silentNotifier{}, &log)
	sweeper := sweep.NewRunner(mem, silentNotifier{}, &log)
	aggregator := stats.NewAggregator(mem)
	svc := service.NewService(mem, &log, engine, aggregator, sweeper, stubFileStore{})
	return NewRouters(&Routers{Service: svc, AdminToken: testToken}), mem
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAdminTokenIsEnforced(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("X-Admin-Token", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndListEvents(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/v1/events", map[string]any{
		"title":          "City Hackathon",
		"description":    "48 hours of code",
		"points_awarded": 2,
		"course":         2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "ok", resp.Status)

	w = do(t, h, http.MethodGet, "/v1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "City Hackathon")
}

func TestCreateEventValidation(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/v1/events", map[string]any{
		"title":  "Bad",
		"course": 9,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewParticipationEndpoint(t *testing.T) {
	h, mem := newTestServer(t)
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, FirstName: "Anna", LastName: "Lee", Course: 2, Group: "IS-2-1"})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Hackathon", Course: 2, PointsAwarded: 2})
	require.NoError(t, err)
	participationID, err := mem.CreateParticipation(ctx, &model.Participation{
		StudentID: studentID, EventID: eventID, CertificateFileID: "file-1",
	})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/v1/participations/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "file-1")

	path := "/v1/participations/" + itoa(participationID) + "/status"
	w = do(t, h, http.MethodPatch, path, map[string]any{"status": "approved", "comment": "ok"})
	require.Equal(t, http.StatusOK, w.Code)

	student, err := mem.GetStudentByID(ctx, studentID)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, student.Rating, 1e-9)

	w = do(t, h, http.MethodPatch, path, map[string]any{"status": "expired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPatch, "/v1/participations/9999/status", map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ParticipationNotFound)
}

func TestCertificateDownload(t *testing.T) {
	h, mem := newTestServer(t)
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Hackathon", Course: 2})
	require.NoError(t, err)
	participationID, err := mem.CreateParticipation(ctx, &model.Participation{
		StudentID: studentID, EventID: eventID, CertificateFileID: "file-1",
	})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/v1/participations/"+itoa(participationID)+"/certificate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "certificate-bytes", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestDeleteEventGuard(t *testing.T) {
	h, mem := newTestServer(t)
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	require.NoError(t, err)
	eventID, err := mem.CreateEvent(ctx, &model.Event{Title: "Hackathon", Course: 2})
	require.NoError(t, err)
	_, err = mem.CreateParticipation(ctx, &model.Participation{StudentID: studentID, EventID: eventID, CertificateFileID: "f"})
	require.NoError(t, err)

	w := do(t, h, http.MethodDelete, "/v1/events/"+itoa(eventID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.EventHasParticipants)

	w = do(t, h, http.MethodPost, "/v1/events/"+itoa(eventID)+"/archive", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/v1/events/archived", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hackathon")
}

func TestStatisticsAndSweepEndpoints(t *testing.T) {
	h, mem := newTestServer(t)
	ctx := context.Background()

	studentID, err := mem.CreateStudent(ctx, &model.Student{TelegramID: 100, Course: 2})
	require.NoError(t, err)
	_, err = mem.CreateEvent(ctx, &model.Event{Title: "Hackathon", Course: 2})
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/v1/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approval_rate")

	w = do(t, h, http.MethodPost, "/v1/penalties/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "penalized_students")

	student, err := mem.GetStudentByID(ctx, studentID)
	require.NoError(t, err)
	assert.InDelta(t, model.RatingDefault-sweep.PenaltyAmount, student.Rating, 1e-9)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
