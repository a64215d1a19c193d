package provider

import "context"

// Echo is the dev stand-in: it returns the original image unchanged, so
// the full upload/store/respond flow stays exercisable without live
// provider access.
type Echo struct{}

var _ Provider = (*Echo)(nil)

func NewEcho() *Echo { return &Echo{} }

func (e *Echo) Name() string { return "echo" }

func (e *Echo) Run(_ context.Context, req Request) (*Result, error) {
	return &Result{Bytes: req.Image, ContentType: req.ContentType, Echoed: true}, nil
}
