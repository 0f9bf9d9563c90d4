// Package httpx provides HTTP handlers and utilities for the vidforge API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/vidforge/vidforge/internal/data"
	"github.com/vidforge/vidforge/internal/domain/model"
	"github.com/vidforge/vidforge/internal/service"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
}

// submitResponse is the body returned for an accepted submission.
type submitResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

// SubmitJob handles requests to submit a new generation job.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Submit(r.Context(), &req)
	if err != nil {
		if model.IsValidation(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "submit_failed",
			Err:     errors.New("failed to submit job"),
		})
		return
	}

	WriteJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// GetJob handles requests to retrieve the status of a specific job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(
				w,
				ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
			)
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "get_job_failed",
			Err:     errors.New("failed to get job"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles requests to list jobs, newest first.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	opts := &model.JobListOptions{}
	opts.Limit, opts.Offset = ParseLimitOffset(r, defaultListLimit, maxListLimit)

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.JobStatus(raw)
		if !status.Valid() {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_status",
				Err:     errors.New("status must be one of queued, processing, completed, failed"),
			})
			return
		}
		opts.Status = status
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "list_failed",
			Err:     errors.New("failed to list jobs"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// GetResult handles requests for a job's output location. The result is only
// addressable once the job has completed.
func (h *JobHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	path, err := h.Svc.Result(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrJobNotFound):
			WriteError(
				w,
				ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
			)
		case errors.Is(err, service.ErrResultNotReady):
			WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "result_not_ready", Err: err})
		default:
			// A failed job's recorded error is part of its public state.
			WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "job_failed", Err: err})
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "result_path": path})
}

// Stats handles requests for job state counts and queue health.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "stats_failed",
			Err:     errors.New("failed to get stats"),
		})
		return
	}

	resp := map[string]any{"jobs": stats}
	if depth, derr := h.Svc.QueueDepth(r.Context()); derr == nil {
		resp["queue_depth"] = depth
	}
	if workers, werr := h.Svc.LiveWorkers(r.Context()); werr == nil {
		resp["live_workers"] = workers
	}
	WriteJSON(w, http.StatusOK, resp)
}
