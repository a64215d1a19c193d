package enhance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/config"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/metrics"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/nats"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/provider"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/storage"
)

type Input struct {
	Model  string
	Image  []byte
	Params Params
}

type Result struct {
	Model     string        `json:"model"`
	InputURL  string        `json:"input_url"`
	OutputURL string        `json:"output_url"`
	Echoed    bool          `json:"echoed,omitempty"`
	Usage     *quota.Status `json:"usage,omitempty"`
}

type Service struct {
	cfg     config.EnhanceConfig
	checker *quota.Checker
	store   storage.Store
	prov    provider.Provider
	events  *nats.Publisher
	now     func() time.Time
}

func NewService(cfg config.EnhanceConfig, checker *quota.Checker, store storage.Store, prov provider.Provider, events *nats.Publisher) *Service {
	return &Service{
		cfg:     cfg,
		checker: checker,
		store:   store,
		prov:    prov,
		events:  events,
		now:     time.Now,
	}
}

// Admit validates the upload and reserves one unit of quota. Shared with
// the job service, which performs the same admission at creation time.
func (s *Service) Admit(ctx context.Context, o owner.Owner, in Input) (Model, string, *quota.Reservation, error) {
	m, ok := ModelFor(in.Model)
	if !ok {
		return Model{}, "", nil, api.NewValidationError("unsupported model: " + in.Model)
	}

	contentType, appErr := ValidateImage(in.Image, s.cfg.MaxFileSize)
	if appErr != nil {
		return Model{}, "", nil, appErr
	}

	plan := quota.PlanFor(o)
	if appErr := ValidateParams(m, plan, in.Params); appErr != nil {
		return Model{}, "", nil, appErr
	}

	res, err := s.checker.Check(ctx, o)
	if err != nil {
		return Model{}, "", nil, quotaAppError(err)
	}
	return m, contentType, res, nil
}

// StoreInput persists the original upload and returns its blob key. The
// quota reservation is released when the write fails.
func (s *Service) StoreInput(ctx context.Context, o owner.Owner, res *quota.Reservation, contentType string, data []byte) (string, error) {
	key := storage.BuildKey(s.cfg.StoragePrefix, storage.KindUpload, string(o.Type), o.ID, contentType, s.now())
	if err := s.store.Put(ctx, key, contentType, data); err != nil {
		slog.Error("storing upload", "key", key, "error", err)
		s.release(ctx, res)
		return "", api.ErrInternalServer
	}
	return key, nil
}

// StoreResult persists a provider output and returns its blob key.
func (s *Service) StoreResult(ctx context.Context, o owner.Owner, contentType string, data []byte) (string, error) {
	key := storage.BuildKey(s.cfg.StoragePrefix, storage.KindResult, string(o.Type), o.ID, contentType, s.now())
	if err := s.store.Put(ctx, key, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}

// LoadBlob fetches a stored blob by key.
func (s *Service) LoadBlob(ctx context.Context, key string) (*storage.Blob, error) {
	return s.store.Get(ctx, key)
}

// DiscardBlob removes a blob nothing references anymore, e.g. an upload
// whose enhancement failed before anything could link to it. Best effort:
// an orphaned blob is not worth failing the request over.
func (s *Service) DiscardBlob(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("discarding orphaned blob", "key", key, "error", err)
	}
}

// MaxFileSize is the configured upload byte ceiling.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// ProviderName identifies the wired inference provider.
func (s *Service) ProviderName() string {
	return s.prov.Name()
}

// Enhance runs the full synchronous flow and returns both blob URLs plus
// the owner's updated usage.
func (s *Service) Enhance(ctx context.Context, o owner.Owner, in Input) (*Result, error) {
	m, contentType, res, err := s.Admit(ctx, o, in)
	if err != nil {
		return nil, err
	}

	inputKey, err := s.StoreInput(ctx, o, res, contentType, in.Image)
	if err != nil {
		return nil, err
	}

	out, echoed, err := s.RunProvider(ctx, m, in.Params, in.Image, contentType)
	if err != nil {
		s.release(ctx, res)
		s.DiscardBlob(ctx, inputKey)
		metrics.EnhancementsTotal.WithLabelValues(m.Slug, "failure").Inc()
		s.publishEnhance(ctx, o, m.Slug, "failure", false)
		return nil, err
	}

	outputKey := inputKey
	if !echoed {
		outputKey, err = s.StoreResult(ctx, o, out.ContentType, out.Bytes)
		if err != nil {
			slog.Error("storing result", "error", err)
			s.release(ctx, res)
			s.DiscardBlob(ctx, inputKey)
			metrics.EnhancementsTotal.WithLabelValues(m.Slug, "failure").Inc()
			return nil, api.ErrInternalServer
		}
	}

	if err := s.checker.Commit(ctx, res); err != nil {
		// The work succeeded; a failed settle must not fail the request.
		slog.Error("committing quota", "owner_type", o.Type, "owner_id", o.ID, "error", err)
	}

	metrics.EnhancementsTotal.WithLabelValues(m.Slug, "success").Inc()
	s.publishEnhance(ctx, o, m.Slug, "success", echoed)

	usage, err := s.checker.Usage(ctx, o)
	if err != nil {
		slog.Warn("loading usage after enhancement", "error", err)
		usage = nil
	}

	return &Result{
		Model:     m.Slug,
		InputURL:  storage.FileURL(inputKey),
		OutputURL: storage.FileURL(outputKey),
		Echoed:    echoed,
		Usage:     usage,
	}, nil
}

// RunProvider invokes the inference provider with the merged parameter
// set. The echoed flag comes from the provider result (the dev double
// echoes every run); missing credentials or an unknown-model 404 also
// degrade to echoing the original image so the flow stays usable without
// live provider access. Callers skip the result store on echoed=true.
func (s *Service) RunProvider(ctx context.Context, m Model, p Params, image []byte, contentType string) (*provider.Result, bool, error) {
	out, err := s.prov.Run(ctx, provider.Request{
		Model:       m.Slug,
		Image:       image,
		ContentType: contentType,
		Input:       m.ProviderInput(p),
	})
	if err == nil {
		return out, out.Echoed, nil
	}

	if errors.Is(err, provider.ErrMissingCredentials) {
		slog.Warn("provider credentials missing, echoing input", "model", m.Slug)
		return &provider.Result{Bytes: image, ContentType: contentType, Echoed: true}, true, nil
	}
	if pe, ok := provider.AsError(err); ok {
		if pe.Status == http.StatusNotFound {
			slog.Warn("provider reported unknown model, echoing input", "model", m.Slug)
			return &provider.Result{Bytes: image, ContentType: contentType, Echoed: true}, true, nil
		}
		return nil, false, pe.AppError()
	}

	slog.Error("provider call failed", "model", m.Slug, "error", err)
	return nil, false, api.ErrInternalServer
}

// Commit settles a reservation; Release returns it. Exposed for the job
// service, which settles across poll requests.
func (s *Service) Commit(ctx context.Context, res *quota.Reservation) error {
	return s.checker.Commit(ctx, res)
}

func (s *Service) release(ctx context.Context, res *quota.Reservation) {
	if err := s.checker.Release(ctx, res); err != nil {
		slog.Error("releasing quota reservation", "owner_type", res.Owner.Type, "owner_id", res.Owner.ID, "error", err)
	}
}

func (s *Service) Release(ctx context.Context, res *quota.Reservation) {
	s.release(ctx, res)
}

func (s *Service) publishEnhance(ctx context.Context, o owner.Owner, model, outcome string, echoed bool) {
	s.events.PublishEnhanceEvent(ctx, nats.EnhanceEvent{
		OwnerType:  string(o.Type),
		OwnerID:    o.ID,
		Model:      model,
		Outcome:    outcome,
		Echoed:     echoed,
		OccurredAt: s.now(),
	})
}

// quotaAppError maps checker failures onto the API taxonomy. Anything
// other than an exhausted window is a hard failure: quota errors fail
// closed.
func quotaAppError(err error) error {
	if qe, ok := quota.AsExceeded(err); ok {
		return api.NewQuotaExceededError(string(qe.Scope), qe.Used, qe.Limit)
	}
	slog.Error("quota admission failed", "error", err)
	return api.ErrInternalServer
}
