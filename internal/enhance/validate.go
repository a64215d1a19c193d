package enhance

import (
	"bytes"
	"fmt"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
)

// Params are the caller-supplied enhancement options after parsing.
// Scale of 0 means "not requested".
type Params struct {
	Scale       int  `json:"scale,omitempty"`
	FaceEnhance bool `json:"face_enhance,omitempty"`
}

var allowedScales = map[int]bool{2: true, 4: true}

// SniffContentType identifies the image format from magic bytes. The
// client-declared Content-Type is never trusted.
func SniffContentType(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	default:
		return "", false
	}
}

// ValidateImage enforces the byte ceiling and the format allow-list,
// returning the sniffed content type.
func ValidateImage(data []byte, maxSize int64) (string, *api.AppError) {
	if len(data) == 0 {
		return "", api.NewValidationError("image is required")
	}
	if int64(len(data)) > maxSize {
		return "", api.NewValidationError(fmt.Sprintf("image exceeds maximum size of %d bytes", maxSize))
	}
	contentType, ok := SniffContentType(data)
	if !ok {
		return "", api.NewValidationError("unsupported image format: only JPEG, PNG and WebP are accepted")
	}
	return contentType, nil
}

// ValidateParams gates the requested parameters by the model's capability
// flags and the plan's overrides.
func ValidateParams(m Model, plan quota.Plan, p Params) *api.AppError {
	if p.Scale != 0 {
		if !m.SupportsScale {
			return api.NewValidationError(fmt.Sprintf("model %s does not support upscaling", m.Slug))
		}
		if !allowedScales[p.Scale] {
			return api.NewValidationError("scale must be 2 or 4")
		}
		if p.Scale > plan.MaxUpscale {
			return api.NewValidationError(fmt.Sprintf("plan %s allows upscaling up to %dx", plan.Name, plan.MaxUpscale))
		}
	}
	if p.FaceEnhance {
		if !m.SupportsFace {
			return api.NewValidationError(fmt.Sprintf("model %s does not support face enhancement", m.Slug))
		}
		if !plan.FaceEnhance {
			return api.NewValidationError(fmt.Sprintf("plan %s does not include face enhancement", plan.Name))
		}
	}
	return nil
}
