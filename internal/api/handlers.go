package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/core"
)

type createJobRequest struct {
	Priority   *int              `json:"priority"`
	RunNow     bool              `json:"run_now"`
	MaxResults int               `json:"max_results"`
	DateRange  string            `json:"date_range"`
	MaxRetries *int              `json:"max_retries"`
	Metadata   map[string]string `json:"metadata"`
}

type setPriorityRequest struct {
	Priority *int `json:"priority"`
}

type scheduleRequest struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"interval_minutes"`
	CrawlPeriod     string `json:"crawl_period"`
}

// createOnDemandJob appends a fresh pending on-demand job for a category.
// Re-running a failed job goes through here too: the failed row stays in
// history and a new job is created in its place.
func (s *Server) createOnDemandJob(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "category_id")

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	priority := core.PriorityDefault
	if req.Priority != nil {
		priority = *req.Priority
	}
	if req.RunNow {
		priority = core.PriorityRunNow
	}
	if priority < core.PriorityDefault || priority > core.PriorityRunNow {
		writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidPriority.Error())
		return
	}
	maxRetries := s.maxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			writeError(w, http.StatusUnprocessableEntity, "max_retries must be non-negative")
			return
		}
		maxRetries = *req.MaxRetries
	}

	cat, err := s.categories.GetCategory(r.Context(), categoryID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !cat.Active {
		s.writeDomainError(w, core.ErrCategoryInactive)
		return
	}

	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("job id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	correlationID, err := s.ids.NewID()
	if err != nil {
		s.logger.Error("correlation id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	job := core.CrawlJob{
		ID:            id,
		CategoryID:    cat.ID,
		Status:        core.JobStatusPending,
		Type:          core.JobTypeOnDemand,
		Priority:      priority,
		MaxRetries:    maxRetries,
		CreatedAt:     s.clock.Now(),
		CorrelationID: correlationID,
		MaxResults:    req.MaxResults,
		DateRange:     req.DateRange,
		Metadata:      req.Metadata,
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("job creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

func (s *Server) setJobPriority(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	var req setPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Priority == nil {
		writeError(w, http.StatusBadRequest, "priority is required")
		return
	}

	job, err := s.dispatcher.SetPriority(r.Context(), jobID, *req.Priority)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) patchJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	var patch core.JobConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := s.dispatcher.UpdateConfig(r.Context(), jobID, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "category_id")

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	cfg, err := s.categories.UpdateScheduleConfig(r.Context(), categoryID, core.ScheduleConfig{
		Enabled:         req.Enabled,
		IntervalMinutes: req.IntervalMinutes,
		CrawlPeriod:     req.CrawlPeriod,
	}, s.clock.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": cfg})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := core.JobFilter{
		CategoryID: r.URL.Query().Get("category_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		switch core.JobStatus(status) {
		case core.JobStatusPending, core.JobStatusRunning, core.JobStatusCompleted, core.JobStatusFailed:
			filter.Status = core.JobStatus(status)
		default:
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	jobs, err := s.jobs.ListJobs(r.Context(), filter)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getCapacity(w http.ResponseWriter, r *http.Request) {
	report, err := s.capacity.Estimate(r.Context())
	if err != nil {
		s.logger.Error("capacity estimate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to estimate capacity")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeDomainError maps sentinel errors to HTTP statuses: unknown resources
// to 404, state conflicts to 409, validation failures to 422.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrCategoryNotFound), errors.Is(err, core.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrCategoryInactive),
		errors.Is(err, core.ErrJobNotPending),
		errors.Is(err, core.ErrJobRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidInterval), errors.Is(err, core.ErrInvalidPriority):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
