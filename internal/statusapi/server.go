// Package statusapi serves read-only scheduler diagnostics over HTTP.
package statusapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"edfsched/internal/sched"
)

// Source is the part of the scheduler the API reads.
type Source interface {
	Tasks() []sched.TaskInfo
	Lookup(id sched.TaskID) (sched.TaskInfo, error)
	IsDeadlineMissed(id sched.TaskID) (bool, error)
	Snapshot() sched.SchedulerStats
	ReadyQueue() []sched.TaskID
}

// Server is the status API.
type Server struct {
	router    chi.Router
	src       Source
	runID     string
	startTime time.Time
	logger    *slog.Logger
}

// New creates a Server with all routes registered.
func New(src Source, runID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		router:    chi.NewRouter(),
		src:       src,
		runID:     runID,
		startTime: time.Now(),
		logger:    logger.With("component", "statusapi"),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Get("/missed", s.handleDeadlineMissed)
			})
		})
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration_ms", time.Since(start).Milliseconds())
	})
}

// envelope is the body of every response.
type envelope struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any, errMsg string) {
	env := envelope{
		Status:    "ok",
		RequestID: "req_" + uuid.New().String()[:8],
		RunID:     s.runID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     errMsg,
	}
	if errMsg != "" {
		env.Status = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

type taskResponse struct {
	ID               uint64  `json:"id"`
	Name             string  `json:"name"`
	State            string  `json:"state"`
	Period           uint64  `json:"period"`
	RelativeDeadline uint64  `json:"relative_deadline"`
	Tiebreak         int     `json:"tiebreak"`
	StackBytes       int     `json:"stack_bytes"`
	AbsoluteDeadline *uint64 `json:"absolute_deadline,omitempty"`
	NextRelease      uint64  `json:"next_release"`
	Releases         uint64  `json:"releases"`
	Dispatches       uint64  `json:"dispatches"`
	Preemptions      uint64  `json:"preemptions"`
	Completions      uint64  `json:"completions"`
	DeadlineMisses   uint64  `json:"deadline_misses"`
	Overruns         uint64  `json:"overruns"`
}

func toTaskResponse(ti sched.TaskInfo) taskResponse {
	tr := taskResponse{
		ID:               uint64(ti.ID),
		Name:             ti.Name,
		State:            ti.State.String(),
		Period:           uint64(ti.Period),
		RelativeDeadline: uint64(ti.RelativeDeadline),
		Tiebreak:         ti.Tiebreak,
		StackBytes:       ti.StackBytes,
		NextRelease:      uint64(ti.NextRelease),
		Releases:         ti.Stats.Releases,
		Dispatches:       ti.Stats.Dispatches,
		Preemptions:      ti.Stats.Preemptions,
		Completions:      ti.Stats.Completions,
		DeadlineMisses:   ti.Stats.DeadlineMisses,
		Overruns:         ti.Stats.Overruns,
	}
	if ti.HasDeadline {
		d := uint64(ti.AbsoluteDeadline)
		tr.AbsoluteDeadline = &d
	}
	return tr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":     "healthy",
		"go_version": runtime.Version(),
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
	}, "")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.src.Snapshot()
	ready := s.src.ReadyQueue()
	queue := make([]uint64, len(ready))
	for i, id := range ready {
		queue[i] = uint64(id)
	}
	s.respond(w, http.StatusOK, map[string]any{
		"now":              uint64(st.Now),
		"tasks":            st.Tasks,
		"ready":            st.Ready,
		"ready_queue":      queue,
		"running":          uint64(st.Running),
		"idle_ticks":       st.IdleTicks,
		"context_switches": st.ContextSwitches,
		"arena_used":       st.ArenaUsed,
		"arena_bytes":      st.ArenaBytes,
		"deadline_misses":  st.DeadlineMisses,
		"overruns":         st.Overruns,
	}, "")
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.src.Tasks()
	out := make([]taskResponse, 0, len(tasks))
	for _, ti := range tasks {
		out = append(out, toTaskResponse(ti))
	}
	s.respond(w, http.StatusOK, out, "")
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	ti, err := s.src.Lookup(id)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toTaskResponse(ti), "")
}

func (s *Server) handleDeadlineMissed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	missed, err := s.src.IsDeadlineMissed(id)
	if err != nil {
		s.respondLookupError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"id": uint64(id), "deadline_missed": missed}, "")
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (sched.TaskID, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		s.respond(w, http.StatusBadRequest, nil, "invalid task id "+strconv.Quote(raw))
		return 0, false
	}
	return sched.TaskID(n), true
}

func (s *Server) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, sched.ErrNotFound) {
		s.respond(w, http.StatusNotFound, nil, err.Error())
		return
	}
	s.logger.Error("lookup failed", "error", err)
	s.respond(w, http.StatusInternalServerError, nil, err.Error())
}
