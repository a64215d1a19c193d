// Package provider abstracts the external image-inference service so the
// enhancement services never branch on environment: production wires the
// real HTTP client, everything else wires the deterministic echo double.
package provider

import "context"

// Request is one inference invocation. Input carries the merged parameter
// set (model defaults overridden by request params); the image travels
// inline and is encoded by the adapter as its provider expects.
type Request struct {
	Model       string
	Image       []byte
	ContentType string
	Input       map[string]any
}

// Result is the fetched output image. Echoed marks outputs that are the
// unmodified input (the dev double, or a degraded fallback); callers skip
// the result store for those since the input blob already holds the bytes.
type Result struct {
	Bytes       []byte
	ContentType string
	Echoed      bool
}

type Provider interface {
	// Name returns the provider identifier (e.g. "replicate", "echo").
	Name() string

	// Run performs a synchronous enhancement.
	Run(ctx context.Context, req Request) (*Result, error)
}
