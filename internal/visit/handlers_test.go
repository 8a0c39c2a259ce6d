package visit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-fieldtrack/internal/ratelimit"
	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

type stubSessions struct {
	id  string
	err error
}

func (s stubSessions) ActiveSessionID(context.Context, string) (string, error) {
	return s.id, s.err
}

func asUser(userID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	}
}

func TestCheckInHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fixedNow(t, time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM tracking_sessions WHERE id = \$1 FOR UPDATE`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sess-1"))
	mock.ExpectQuery(`SELECT sequence_no, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO visit_logs`).
		WithArgs(pgxmock.AnyArg(), "sess-1", "user-1", 1, "Acme Traders", "", 13.08, 80.27,
			0.0, "", "", pgxmock.AnyArg(), 0.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO live_locations`).
		WithArgs("user-1", "sess-1", 13.08, 80.27, 0.0, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(mock, time.UTC), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	body, _ := json.Marshal(CheckInRequest{Latitude: 13.08, Longitude: 80.27, CustomerName: "Acme Traders"})
	req := httptest.NewRequest(http.MethodPost, "/tracking/visits/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("check-in status: %v %d", err, resp.StatusCode)
	}

	var v VisitLog
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if v.SequenceNo != 1 || v.DistanceFromPrevKm != 0 {
		t.Fatalf("unexpected visit: %+v", v)
	}
}

func TestCheckInHandlerMissingCustomer(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(nil, time.UTC), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/tracking/visits/check-in", bytes.NewReader([]byte(`{"latitude":13.08,"longitude":80.27}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestCheckInHandlerRateLimited(t *testing.T) {
	limiter := ratelimit.New(nil)
	for i := 0; i < 10; i++ {
		if err := limiter.AllowVisit(context.Background(), "user-1"); err != nil {
			t.Fatalf("warmup %d rejected: %v", i+1, err)
		}
	}

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(nil, time.UTC), stubSessions{id: "sess-1"}, limiter, asUser("user-1"))

	body, _ := json.Marshal(CheckInRequest{Latitude: 13.08, Longitude: 80.27, CustomerName: "Acme Traders"})
	req := httptest.NewRequest(http.MethodPost, "/tracking/visits/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected too many requests, got %v %d", err, resp.StatusCode)
	}
}

func TestCheckInHandlerNoActiveSession(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(nil, time.UTC),
		stubSessions{err: apperrors.ErrNoActiveSession}, ratelimit.New(nil), asUser("user-1"))

	body, _ := json.Marshal(CheckInRequest{Latitude: 13.08, Longitude: 80.27, CustomerName: "Acme Traders"})
	req := httptest.NewRequest(http.MethodPost, "/tracking/visits/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %v %d", err, resp.StatusCode)
	}
}

func TestCheckOutHandlerNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	// The boundary retry only re-runs storage failures, so a missing visit
	// is reported after a single attempt.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE visit_logs`).
		WithArgs("ghost", "user-1", pgxmock.AnyArg(), (*float64)(nil), (*float64)(nil)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(mock, time.UTC), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/tracking/visits/check-out", bytes.NewReader([]byte(`{"visit_id":"ghost"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %v %d", err, resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActiveHandlerNoSession(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(nil, time.UTC),
		stubSessions{err: apperrors.ErrNoActiveSession}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/tracking/visits/active", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("active status: %v %d", err, resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out["visit"] != nil {
		t.Fatalf("expected nil visit, got %v", out)
	}
}

func TestTodayHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fixedNow(t, time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC))
	start := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT v.id, v.session_id,`).
		WithArgs("user-1", "2026-08-29").
		WillReturnRows(pgxmock.NewRows(visitRowCols).
			AddRow("v-1", "sess-1", "user-1", 1, "Acme Traders", "", 13.08, 80.27,
				0.0, "", "", start, &start, (*float64)(nil), (*float64)(nil), 0.0))

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/visits"), NewService(mock, time.UTC), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodGet, "/tracking/visits/today", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("today status: %v %d", err, resp.StatusCode)
	}

	var day DayVisits
	if err := json.NewDecoder(resp.Body).Decode(&day); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if day.TotalVisits != 1 || day.Date != "2026-08-29" {
		t.Fatalf("unexpected day: %+v", day)
	}
}
