package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"aircheck/internal/config"
	"aircheck/internal/logging"
	"aircheck/internal/progress"
	"aircheck/internal/queue"
	"aircheck/internal/sensitivity"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
}

// jobView is the API representation of a queued job.
type jobView struct {
	ID               int64     `json:"id"`
	CorrelationID    string    `json:"correlation_id"`
	AcceptancePath   string    `json:"acceptance_path"`
	EmissionPath     string    `json:"emission_path"`
	SensitivityLevel string    `json:"sensitivity_level"`
	ComparisonType   string    `json:"comparison_type"`
	Status           string    `json:"status"`
	ProgressStage    string    `json:"progress_stage,omitempty"`
	ProgressPercent  float64   `json:"progress_percent"`
	ProgressMessage  string    `json:"progress_message,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type submitRequest struct {
	AcceptancePath string `json:"acceptance_path"`
	EmissionPath   string `json:"emission_path"`
	Sensitivity    string `json:"sensitivity"`
	ComparisonType string `json:"comparison_type"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
		daemon: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobItem)
	mux.HandleFunc("/ws", srv.handleWebsocket)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, useful when binding to port 0.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":        status.Running,
		"queue_db_path":  status.QueueDBPath,
		"lock_file_path": status.LockFilePath,
		"subscribers":    status.Subscribers,
		"queue":          status.Queue,
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobs(w, r)
	case http.MethodPost:
		s.submitJob(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toJobView(job))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *apiServer) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.AcceptancePath) == "" || strings.TrimSpace(req.EmissionPath) == "" {
		s.writeError(w, http.StatusBadRequest, "acceptance_path and emission_path are required")
		return
	}
	comparisonType, ok := sensitivity.ParseType(req.ComparisonType)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown comparison type %q", req.ComparisonType))
		return
	}
	level := sensitivity.ParseLevel(req.Sensitivity)
	policy := sensitivity.Resolve(level, comparisonType)

	job, err := s.daemon.store.NewJob(r.Context(), req.AcceptancePath, req.EmissionPath, level, comparisonType, policy)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.daemon.hub.Publish(job)
	s.logger.Info("job submitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("comparison_type", string(comparisonType)))
	s.writeJSON(w, http.StatusCreated, map[string]any{"job": toJobView(job)})
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	idStr, suffix, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	switch {
	case suffix == "" && r.Method == http.MethodGet:
		s.describeJob(w, r, id)
	case suffix == "" && r.Method == http.MethodDelete:
		s.removeJob(w, r, id)
	case suffix == "report" && r.Method == http.MethodGet:
		s.jobReport(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeJob(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": toJobView(job)})
}

func (s *apiServer) removeJob(w http.ResponseWriter, r *http.Request, id int64) {
	removed, err := s.daemon.store.Remove(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.daemon.hub.Forget(id)
	if s.daemon.artifacts != nil {
		if err := s.daemon.artifacts.RemoveJob(id); err != nil {
			s.logger.Warn("artifact cleanup failed", logging.Int64(logging.FieldJobID, id), logging.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) jobReport(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != queue.StatusCompleted {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job is %s, report available once completed", job.Status))
		return
	}

	rep, err := s.daemon.store.GetReport(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rep == nil {
		s.writeError(w, http.StatusNotFound, "report not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}

func (s *apiServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	var jobIDs []int64
	for _, value := range r.URL.Query()["job_id"] {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job_id %q", value))
			return
		}
		jobIDs = append(jobIDs, id)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	subscriber := progress.NewWebsocketConn(conn)
	s.daemon.hub.Subscribe(subscriber, jobIDs...)
	s.logger.Debug("progress subscriber connected", logging.String("remote", conn.RemoteAddr().String()))

	// Drain the read side so close frames are processed; subscribers only
	// receive.
	go func() {
		defer s.daemon.hub.Unsubscribe(subscriber)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func toJobView(job *queue.Job) jobView {
	return jobView{
		ID:               job.ID,
		CorrelationID:    job.CorrelationID,
		AcceptancePath:   job.AcceptancePath,
		EmissionPath:     job.EmissionPath,
		SensitivityLevel: string(job.SensitivityLevel),
		ComparisonType:   string(job.ComparisonType),
		Status:           string(job.Status),
		ProgressStage:    job.ProgressStage,
		ProgressPercent:  job.ProgressPercent,
		ProgressMessage:  job.ProgressMessage,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
