package ads

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()
	svc := NewService(DefaultConfig(), testLogger(), nil)
	return NewHandler(svc, testLogger(), nil), svc
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/state", h.GetState)
		r.Post("/release", h.ReleaseSession)
	})
	return r
}

func createSession(t *testing.T, r *chi.Mux, id string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateSession(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := createSession(t, r, "s1", map[string]interface{}{"cue_points": []float64{0, 15, -1}})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateSession_conflict(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	createSession(t, r, "s1", map[string]interface{}{"cue_points": []float64{0}})
	rec := createSession(t, r, "s1", map[string]interface{}{"cue_points": []float64{0}})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandler_CreateSession_bad_request(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_CreateSession_watch_time_needs_duration(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := createSession(t, r, "s1", map[string]interface{}{
		"cue_points": []float64{0}, "watch_time_pacing": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetState(t *testing.T) {
	h, svc := newTestHandler(t)
	r := newTestRouter(h)

	createSession(t, r, "s1", map[string]interface{}{"cue_points": []float64{0, 15, -1}})
	session, err := svc.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	waitForLedger(t, session.Coordinator)

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view stateView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !view.Ready {
		t.Error("state should be ready")
	}
	if len(view.Groups) != 3 {
		t.Fatalf("groups: got %d want 3", len(view.Groups))
	}
	if !view.Groups[2].Postroll {
		t.Error("last group should be the postroll")
	}
}

func TestHandler_GetState_not_found(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/sessions/nope/state", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ReleaseSession(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	createSession(t, r, "s1", map[string]interface{}{"cue_points": []float64{0}})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/release", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sessions/s1/release", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("release of released session: expected 404, got %d", rec.Code)
	}
}
