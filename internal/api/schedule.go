package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/heliplan/heliplan-core/internal/schedule"
)

// jobView is the JSON shape of one live scheduled job.
type jobView struct {
	ID      string   `json:"id"`
	Alias   string   `json:"alias,omitempty"`
	Tags    []string `json:"tags"`
	DueAt   string   `json:"due_at"`
	DueInS  int64    `json:"due_in_s"`
	PrevRun string   `json:"prev_run,omitempty"`
	Created string   `json:"created"`
}

// scheduleResponse is the response body for GET /schedule.
type scheduleResponse struct {
	Jobs  []jobView `json:"jobs"`
	Count int       `json:"count"`
	Now   string    `json:"now"`
}

// runClosestRequest is the request body for POST /schedule/run-closest.
// It mirrors the RunClosestSchedule plan action's arguments.
type runClosestRequest struct {
	Tags         []string `json:"tags"`
	Strategy     string   `json:"strategy"`
	AllowOverlap bool     `json:"allow_overlap"`
}

// handleSchedule returns the live job table as JSON, ordered by due time.
func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	jobs := s.sched.Snapshot()

	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toJobView(j, now))
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Jobs:  views,
		Count: len(views),
		Now:   now.Format(time.RFC3339),
	})
}

// handleScheduleTable returns the schedule as the same rendered ASCII
// table the PrintSchedule action logs.
func (s *Server) handleScheduleTable(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	rendered := schedule.RenderTable(s.sched.Snapshot(), now)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(rendered + "\n"))
}

// handleRunClosest fires the job closest to now under the requested
// strategy, out of band. The job stays scheduled for its natural due
// time. Used to re-establish a sane device state on demand.
func (s *Server) handleRunClosest(w http.ResponseWriter, r *http.Request) {
	var req runClosestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Strategy == "" {
		writeBadRequest(w, "strategy is required")
		return
	}
	strategy, err := schedule.ParseStrategy(strings.ToLower(req.Strategy))
	if err != nil {
		writeBadRequest(w, "strategy must be prev, next or prev_next")
		return
	}

	now := s.now()
	job, err := s.sched.Closest(now, req.Tags, strategy, req.AllowOverlap)
	if errors.Is(err, schedule.ErrNotFound) {
		writeNotFound(w, "no matching schedule entry")
		return
	}
	if err != nil {
		s.logger.Error("closest schedule query failed", "error", err)
		writeInternalError(w, "schedule query failed")
		return
	}

	if err := s.sched.RunJob(job.ID); err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			// Fired naturally between the query and the run.
			writeConflict(w, "job already fired")
			return
		}
		s.logger.Error("out-of-band job run failed", "job_id", job.ID, "error", err)
		writeInternalError(w, "job run failed")
		return
	}

	s.logger.Info("schedule entry run via API",
		"job_id", job.ID,
		"alias", job.Alias,
		"operator", r.Context().Value(ctxKeyOperator),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "run",
		"job":    toJobView(job, now),
	})
}

func toJobView(j schedule.JobInfo, now time.Time) jobView {
	v := jobView{
		ID:      j.ID,
		Alias:   j.Alias,
		Tags:    j.Tags,
		DueAt:   j.DueAt.Format(time.RFC3339),
		DueInS:  int64(j.DueAt.Sub(now).Seconds()),
		Created: j.Created.Format(time.RFC3339),
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if !j.PrevRun.IsZero() {
		v.PrevRun = j.PrevRun.Format(time.RFC3339)
	}
	return v
}
