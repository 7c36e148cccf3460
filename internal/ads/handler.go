package ads

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"adbreak-coordinator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes session HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and
// optional Metrics. Metrics may be nil to disable metric recording (e.g. in
// tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// createSessionRequest is the body of POST /sessions/{session_id}.
type createSessionRequest struct {
	CuePoints         []float64 `json:"cue_points"`
	WatchTimePacing   bool      `json:"watch_time_pacing"`
	ContentDurationMs int64     `json:"content_duration_ms"`
}

// adGroupView is the JSON shape of one ledger group.
type adGroupView struct {
	TimeUs   int64    `json:"time_us"`
	Postroll bool     `json:"postroll"`
	Count    int      `json:"count"`
	States   []string `json:"states"`
	URIs     []string `json:"uris"`
}

// stateView is the JSON shape of a ledger snapshot.
type stateView struct {
	Ready              bool          `json:"ready"`
	ContentDurationUs  int64         `json:"content_duration_us"`
	AdResumePositionUs int64         `json:"ad_resume_position_us"`
	Groups             []adGroupView `json:"groups"`
}

func viewOf(state PlaybackState, ready bool) stateView {
	v := stateView{
		Ready:              ready,
		ContentDurationUs:  state.ContentDurationUs,
		AdResumePositionUs: state.AdResumePositionUs,
		Groups:             make([]adGroupView, 0, len(state.Groups)),
	}
	for _, g := range state.Groups {
		gv := adGroupView{
			TimeUs:   g.TimeUs,
			Postroll: g.TimeUs == TimeEndOfSource,
			Count:    g.Count,
			States:   make([]string, len(g.States)),
			URIs:     append([]string(nil), g.URIs...),
		}
		for i, s := range g.States {
			gv.States[i] = s.String()
		}
		v.Groups = append(v.Groups, gv)
	}
	return v
}

// CreateSession handles POST /sessions/{session_id}.
// Body: { "cue_points": [0, 15.5, -1], "watch_time_pacing": false }.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.WatchTimePacing && req.ContentDurationMs <= 0 {
		h.log.Debug("watch-time session without content duration",
			slog.String("session_id", sessionID))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	_, err := h.svc.Create(sessionID, SessionOptions{
		CuePoints:         req.CuePoints,
		WatchTimePacing:   req.WatchTimePacing,
		ContentDurationMs: req.ContentDurationMs,
	})
	if err != nil {
		switch err {
		case ErrSessionExists:
			h.log.Info("session already exists", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusConflict)
			return
		default:
			h.log.Error("create session failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	h.log.Debug("session created",
		slog.String("session_id", sessionID),
		slog.Int("cue_points", len(req.CuePoints)))
	w.WriteHeader(http.StatusCreated)
	if h.metrics != nil {
		h.metrics.IncSessionsCreated()
	}
}

// GetState handles GET /sessions/{session_id}/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	session, err := h.svc.Get(sessionID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	state, ready := session.Coordinator.State()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(viewOf(state, ready)); err != nil {
		h.log.Error("encode state failed", slog.String("error", err.Error()))
	}
}

// ReleaseSession handles POST /sessions/{session_id}/release.
func (h *Handler) ReleaseSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.Release(sessionID); err != nil {
		switch err {
		case ErrSessionNotFound:
			w.WriteHeader(http.StatusNotFound)
			return
		default:
			h.log.Error("release session failed",
				slog.String("session_id", sessionID), slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	h.log.Info("session released", slog.String("session_id", sessionID))
	w.WriteHeader(http.StatusOK)
	if h.metrics != nil {
		h.metrics.IncSessionsReleased()
	}
}
