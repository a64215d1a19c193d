package jobs

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/enhance"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/storage"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type jobResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	Model      string         `json:"model"`
	Provider   string         `json:"provider"`
	Params     enhance.Params `json:"params"`
	InputURL   string         `json:"input_url"`
	OutputURL  string         `json:"output_url,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

func toResponse(job *Job) jobResponse {
	resp := jobResponse{
		ID:         job.ID.String(),
		Status:     string(job.Status),
		Model:      job.Model,
		Provider:   job.Provider,
		Params:     job.Params,
		InputURL:   storage.FileURL(job.InputKey),
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.OutputKey != "" {
		resp.OutputURL = storage.FileURL(job.OutputKey)
	}
	return resp
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	o, ok := owner.FromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	in, appErr := enhance.ParseUpload(r, h.svc.enhance.MaxFileSize())
	if appErr != nil {
		api.HandleError(w, appErr)
		return
	}

	job, err := h.svc.Create(r.Context(), o, in)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusAccepted, toResponse(job))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := owner.FromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		api.HandleError(w, api.NewValidationError("invalid job id"))
		return
	}

	job, svcErr := h.svc.GetAndProcessIfNeeded(r.Context(), o, id)
	if svcErr != nil {
		api.HandleError(w, svcErr)
		return
	}

	api.JSON(w, http.StatusOK, toResponse(job))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	o, ok := owner.FromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		api.HandleError(w, api.NewValidationError("invalid job id"))
		return
	}

	job, svcErr := h.svc.Cancel(r.Context(), o, id)
	if svcErr != nil {
		api.HandleError(w, svcErr)
		return
	}

	api.JSON(w, http.StatusOK, toResponse(job))
}
