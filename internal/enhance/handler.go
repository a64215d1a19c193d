package enhance

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
)

type Handler struct {
	svc     *Service
	checker *quota.Checker
}

func NewHandler(svc *Service, checker *quota.Checker) *Handler {
	return &Handler{svc: svc, checker: checker}
}

// maxFormMemory bounds the in-memory portion of multipart parsing; larger
// parts spill to temp files.
const maxFormMemory = 8 << 20

// ParseUpload reads the multipart fields shared by the sync and job
// endpoints: image, model, scale, face_enhance.
func ParseUpload(r *http.Request, maxFileSize int64) (Input, *api.AppError) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFileSize+maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return Input{}, api.NewValidationError("request must be multipart/form-data with an image field")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return Input{}, api.NewValidationError("image is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
	if err != nil {
		return Input{}, api.NewValidationError("reading uploaded image failed")
	}

	in := Input{
		Model: r.FormValue("model"),
		Image: data,
	}
	if in.Model == "" {
		return Input{}, api.NewValidationError("model is required")
	}

	if v := r.FormValue("scale"); v != "" {
		scale, err := strconv.Atoi(v)
		if err != nil {
			return Input{}, api.NewValidationError("scale must be an integer")
		}
		in.Params.Scale = scale
	}
	if v := r.FormValue("face_enhance"); v != "" {
		face, err := strconv.ParseBool(v)
		if err != nil {
			return Input{}, api.NewValidationError("face_enhance must be a boolean")
		}
		in.Params.FaceEnhance = face
	}
	return in, nil
}

func (h *Handler) Enhance(w http.ResponseWriter, r *http.Request) {
	o, ok := owner.FromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	in, appErr := ParseUpload(r, h.svc.cfg.MaxFileSize)
	if appErr != nil {
		api.HandleError(w, appErr)
		return
	}

	result, err := h.svc.Enhance(r.Context(), o, in)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, result)
}

// Usage reports the owner's quota windows and credit balance.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	o, ok := owner.FromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.checker.Usage(r.Context(), o)
	if err != nil {
		slog.Error("loading usage", "owner_type", o.Type, "owner_id", o.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
