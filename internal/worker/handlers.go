package worker

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/doubledekr/Dekr-NextGen-sub004/pkg/models"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleHealth reports liveness plus engine and database status.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := s.store.HealthCheck(r.Context())

	writeJSON(w, map[string]interface{}{
		"status":          db.Status,
		"version":         s.version,
		"uptime_seconds":  int(time.Since(s.startTime).Seconds()),
		"active_sessions": s.engine.Sessions().ActiveCount(),
		"queued_offline":  s.engine.QueueSize(),
		"database":        db,
	})
}

// handleIngest accepts one interaction and returns the updated session
// metrics plus any rule actions it triggered.
func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	var in models.UserInteraction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.engine.Ingest(r.Context(), in)
	if err != nil {
		if errors.Is(err, models.ErrMissingUserID) || errors.Is(err, models.ErrMissingCardID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, result)
}

// handleGetFeed returns the user's current personalized content order.
func (s *Service) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	order, err := s.engine.GetCurrentOrder(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, order)
}

// handleSessionMetrics returns the live snapshot for one session.
func (s *Service) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, ok := s.engine.GetSessionMetrics(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, map[string]interface{}{
		"session_id": sess.SessionID,
		"user_id":    sess.UserID,
		"metrics":    sess.SessionMetrics,
		"user_state": sess.UserState,
		"started_at": sess.StartTime,
	})
}

// handleEvaluate runs rule evaluation on demand for a session.
func (s *Service) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	result, ok := s.engine.TriggerEvaluation(r.Context(), sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, result)
}

// handleEndSession ends a session and returns its final snapshot.
func (s *Service) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	final, ended := s.engine.EndSession(r.Context(), sessionID)
	if !ended {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, map[string]interface{}{
		"session_id": final.SessionID,
		"user_id":    final.UserID,
		"metrics":    final.SessionMetrics,
		"ended":      true,
	})
}
