package location

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

func TestUpdateHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO live_locations`).
		WithArgs("user-1", "sess-1", 13.08, 80.27, 5.0, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(mock, nil), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	body, _ := json.Marshal(UpdateRequest{Latitude: 13.08, Longitude: 80.27, AccuracyM: 5})
	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %v %d", err, resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateHandlerNoActiveSession(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(nil, nil),
		stubSessions{err: apperrors.ErrNoActiveSession}, ratelimit.New(nil), asUser("user-1"))

	body, _ := json.Marshal(UpdateRequest{Latitude: 13.08, Longitude: 80.27})
	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %v %d", err, resp.StatusCode)
	}
}

func TestUpdateHandlerInvalidCoordinates(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(nil, nil), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	body, _ := json.Marshal(UpdateRequest{Latitude: 0, Longitude: 0})
	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v %d", err, resp.StatusCode)
	}
}

func TestUpdateHandlerRateLimited(t *testing.T) {
	limiter := ratelimit.New(nil)
	for i := 0; i < 6; i++ {
		if err := limiter.AllowGPS(context.Background(), "user-1"); err != nil {
			t.Fatalf("warmup %d rejected: %v", i+1, err)
		}
	}

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(nil, nil), stubSessions{id: "sess-1"}, limiter, asUser("user-1"))

	body, _ := json.Marshal(UpdateRequest{Latitude: 13.08, Longitude: 80.27})
	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/update", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected too many requests, got %v %d", err, resp.StatusCode)
	}
}

func TestUpdateHandlerParseError(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(nil, nil), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/update", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestStopHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE live_locations`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/tracking/gps"), NewService(mock, nil), stubSessions{id: "sess-1"}, ratelimit.New(nil), asUser("user-1"))

	req := httptest.NewRequest(http.MethodPost, "/tracking/gps/stop", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status: %v %d", err, resp.StatusCode)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLiveLocationsHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	checkIn := time.Now().Add(-time.Hour)
	cols := []string{"user_id", "session_id", "latitude", "longitude", "accuracy_m", "is_active", "last_updated",
		"full_name", "username", "photo_url", "phone", "email", "role", "check_in_time"}
	mock.ExpectQuery(`SELECT ll.user_id, ll.session_id,`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("user-1", "sess-1", 13.08, 80.27, 5.0, true, time.Now(),
				"Ravi Kumar", "ravi", "", "9900112233", "ravi@example.com", "SALESMAN", &checkIn))

	app := fiber.New()
	RegisterAdminRoutes(app.Group("/admin"), NewService(mock, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/live-locations", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("live-locations status: %v %d", err, resp.StatusCode)
	}

	var out struct {
		ActiveCount int      `json:"active_count"`
		Locations   []Marker `json:"locations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if out.ActiveCount != 1 || out.Locations[0].Username != "ravi" {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestLiveLocationsHandlerBadRole(t *testing.T) {
	app := fiber.New()
	RegisterAdminRoutes(app.Group("/admin"), NewService(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/live-locations?role=WIZARD", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}
