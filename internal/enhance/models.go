// Package enhance implements the synchronous image-enhancement flow:
// validate the upload, admit it against the owner's quota, run the
// inference provider, store input and output blobs, and settle the quota.
package enhance

// Model describes one enhancement model: which parameters it accepts and
// the provider defaults merged under request parameters.
type Model struct {
	Slug          string
	SupportsScale bool
	SupportsFace  bool
	// ScaleParam is the provider-side name of the upscale factor parameter.
	ScaleParam string
	// FaceParam is the provider-side name of the face-enhancement toggle.
	FaceParam string
	Defaults  map[string]any
}

var models = map[string]Model{
	"real-esrgan": {
		Slug:          "real-esrgan",
		SupportsScale: true,
		SupportsFace:  true,
		ScaleParam:    "scale",
		FaceParam:     "face_enhance",
		Defaults:      map[string]any{"scale": 2, "face_enhance": false},
	},
	"gfpgan": {
		Slug:          "gfpgan",
		SupportsScale: true,
		SupportsFace:  false,
		ScaleParam:    "scale",
		Defaults:      map[string]any{"version": "v1.4", "scale": 2},
	},
	"codeformer": {
		Slug:          "codeformer",
		SupportsScale: true,
		SupportsFace:  false,
		ScaleParam:    "upscale",
		Defaults: map[string]any{
			"codeformer_fidelity": 0.7,
			"background_enhance":  true,
			"face_upsample":       true,
			"upscale":             2,
		},
	},
}

// ModelFor returns the catalog entry for a slug.
func ModelFor(slug string) (Model, bool) {
	m, ok := models[slug]
	return m, ok
}

// ProviderInput merges the model defaults with the validated request
// parameters. Request values win over defaults.
func (m Model) ProviderInput(p Params) map[string]any {
	input := make(map[string]any, len(m.Defaults)+2)
	for k, v := range m.Defaults {
		input[k] = v
	}
	if m.SupportsScale && p.Scale > 0 {
		input[m.ScaleParam] = p.Scale
	}
	if m.SupportsFace && p.FaceEnhance {
		input[m.FaceParam] = true
	}
	return input
}
