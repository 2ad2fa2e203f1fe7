package api

import (
	"encoding/json"
	"net/http"

	"github.com/heliplan/heliplan-core/internal/planner"
)

// handleReEvaluate queues a plan re-evaluation. The request returns as
// soon as the request is queued; the engine performs the teardown and
// rebind on its own goroutine and broadcasts the resulting schedule on
// the WebSocket "schedule" channel.
func (s *Server) handleReEvaluate(w http.ResponseWriter, r *http.Request) {
	var req planner.ReEvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Reason = "api"
	s.engine.Enqueue(req)

	s.logger.Info("plan re-evaluation queued",
		"reset_schedule", req.ResetSchedule,
		"reset_event_listeners", req.ResetEventListeners,
		"operator", r.Context().Value(ctxKeyOperator),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":                "queued",
		"reset_schedule":        req.ResetSchedule,
		"reset_event_listeners": req.ResetEventListeners,
	})
}
