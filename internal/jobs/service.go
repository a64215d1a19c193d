package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/enhance"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/metrics"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/nats"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
)

type Service struct {
	repo    Repository
	enhance *enhance.Service
	events  *nats.Publisher
	now     func() time.Time
}

func NewService(repo Repository, enhanceSvc *enhance.Service, events *nats.Publisher) *Service {
	return &Service{
		repo:    repo,
		enhance: enhanceSvc,
		events:  events,
		now:     time.Now,
	}
}

// Create validates and admits the upload exactly like a synchronous
// enhancement, stores the input, and persists a queued job. The provider
// is not called; the first poll does that.
func (s *Service) Create(ctx context.Context, o owner.Owner, in enhance.Input) (*Job, error) {
	m, contentType, res, err := s.enhance.Admit(ctx, o, in)
	if err != nil {
		return nil, err
	}

	inputKey, err := s.enhance.StoreInput(ctx, o, res, contentType, in.Image)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:               uuid.New(),
		OwnerType:        string(o.Type),
		OwnerID:          o.ID,
		Provider:         s.enhance.ProviderName(),
		Model:            m.Slug,
		Params:           in.Params,
		Status:           StatusQueued,
		InputKey:         inputKey,
		InputContentType: contentType,
		InputSize:        int64(len(in.Image)),
		UseCredit:        res.UseCredit,
		CreatedAt:        s.now(),
		UpdatedAt:        s.now(),
	}
	if id, ok := o.UserID(); ok {
		job.UserID = &id
	}

	if err := s.repo.Create(ctx, job); err != nil {
		slog.Error("creating job", "error", err)
		s.enhance.Release(ctx, res)
		// No row references the upload yet, so it would linger forever.
		s.enhance.DiscardBlob(ctx, inputKey)
		return nil, api.ErrInternalServer
	}

	metrics.JobTransitionsTotal.WithLabelValues(string(StatusQueued)).Inc()
	s.publishTransition(ctx, job, "", StatusQueued, "")
	return job, nil
}

// GetAndProcessIfNeeded returns the job, advancing it when due: terminal
// jobs come back unchanged, a queued job is claimed and the provider call
// runs inline within this poll. A job another poll already claimed is
// returned in processing state untouched.
func (s *Service) GetAndProcessIfNeeded(ctx context.Context, o owner.Owner, id uuid.UUID) (*Job, error) {
	job, err := s.getOwned(ctx, o, id)
	if err != nil {
		return nil, err
	}

	if job.Status != StatusQueued {
		return job, nil
	}

	claimed, err := s.repo.ClaimQueued(ctx, job.ID)
	if err != nil {
		slog.Error("claiming job", "job_id", job.ID, "error", err)
		return nil, api.ErrInternalServer
	}
	if !claimed {
		return s.getOwned(ctx, o, id)
	}

	metrics.JobTransitionsTotal.WithLabelValues(string(StatusProcessing)).Inc()
	s.publishTransition(ctx, job, StatusQueued, StatusProcessing, "")

	s.process(ctx, o, job)
	return s.getOwned(ctx, o, id)
}

// process runs the provider call for a freshly claimed job and settles
// both the row and the quota reservation made at creation time.
func (s *Service) process(ctx context.Context, o owner.Owner, job *Job) {
	res := &quota.Reservation{Owner: o, Plan: quota.PlanFor(o), UseCredit: job.UseCredit}

	m, ok := enhance.ModelFor(job.Model)
	if !ok {
		s.fail(ctx, job, res, "model no longer available: "+job.Model)
		return
	}

	blob, err := s.enhance.LoadBlob(ctx, job.InputKey)
	if err != nil || blob == nil {
		slog.Error("loading job input", "job_id", job.ID, "key", job.InputKey, "error", err)
		s.fail(ctx, job, res, "input image unavailable")
		return
	}

	out, echoed, err := s.enhance.RunProvider(ctx, m, job.Params, blob.Data, blob.ContentType)
	if err != nil {
		s.fail(ctx, job, res, failureMessage(err))
		return
	}

	outputKey := job.InputKey
	if !echoed {
		outputKey, err = s.enhance.StoreResult(ctx, o, out.ContentType, out.Bytes)
		if err != nil {
			slog.Error("storing job result", "job_id", job.ID, "error", err)
			s.fail(ctx, job, res, "storing result failed")
			return
		}
	}

	finished, err := s.repo.MarkSucceeded(ctx, job.ID, outputKey)
	if err != nil {
		slog.Error("marking job succeeded", "job_id", job.ID, "error", err)
		return
	}
	if !finished {
		// A cancel raced the provider call and won; the canceled row stands
		// and the reserved unit goes back.
		s.enhance.Release(ctx, res)
		return
	}

	if err := s.enhance.Commit(ctx, res); err != nil {
		slog.Error("committing job quota", "job_id", job.ID, "error", err)
	}
	metrics.JobTransitionsTotal.WithLabelValues(string(StatusSucceeded)).Inc()
	s.publishTransition(ctx, job, StatusProcessing, StatusSucceeded, "")
}

// fail marks a processing job failed with the captured message and
// returns the reserved daily unit. Jobs are never retried automatically.
func (s *Service) fail(ctx context.Context, job *Job, res *quota.Reservation, msg string) {
	failed, err := s.repo.MarkFailed(ctx, job.ID, msg)
	if err != nil {
		slog.Error("marking job failed", "job_id", job.ID, "error", err)
		return
	}
	if failed {
		metrics.JobTransitionsTotal.WithLabelValues(string(StatusFailed)).Inc()
		s.publishTransition(ctx, job, StatusProcessing, StatusFailed, msg)
	}
	s.enhance.Release(ctx, res)
}

// Cancel flips a queued or processing job to canceled. It does not
// interrupt a provider call an overlapping poll already started; that
// poll observes the canceled row when it tries to finish.
func (s *Service) Cancel(ctx context.Context, o owner.Owner, id uuid.UUID) (*Job, error) {
	job, err := s.getOwned(ctx, o, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case StatusCanceled:
		return job, nil
	case StatusSucceeded, StatusFailed:
		return nil, api.NewValidationError("job already finished")
	}

	canceled, err := s.repo.CancelFrom(ctx, job.ID, job.Status)
	if err != nil {
		slog.Error("canceling job", "job_id", job.ID, "error", err)
		return nil, api.ErrInternalServer
	}
	if !canceled {
		// The status moved under us; report whatever it is now.
		job, err = s.getOwned(ctx, o, id)
		if err != nil {
			return nil, err
		}
		if job.Status == StatusCanceled {
			return job, nil
		}
		return nil, api.NewValidationError("job already finished")
	}

	if job.Status == StatusQueued {
		// The provider never ran; the reserved daily unit goes back. A job
		// canceled mid-processing is settled by the poll that claimed it.
		res := &quota.Reservation{Owner: o, Plan: quota.PlanFor(o), UseCredit: job.UseCredit}
		s.enhance.Release(ctx, res)
	}

	metrics.JobTransitionsTotal.WithLabelValues(string(StatusCanceled)).Inc()
	s.publishTransition(ctx, job, job.Status, StatusCanceled, "")
	return s.getOwned(ctx, o, id)
}

// getOwned loads a job and enforces ownership. Jobs belonging to other
// owners read as missing.
func (s *Service) getOwned(ctx context.Context, o owner.Owner, id uuid.UUID) (*Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		slog.Error("loading job", "job_id", id, "error", err)
		return nil, api.ErrInternalServer
	}
	if job == nil || job.OwnerType != string(o.Type) || job.OwnerID != o.ID {
		return nil, api.NewNotFoundError("job not found")
	}
	return job, nil
}

func (s *Service) publishTransition(ctx context.Context, job *Job, from, to Status, errMsg string) {
	s.events.PublishJobEvent(ctx, nats.JobEvent{
		JobID:      job.ID.String(),
		OwnerType:  job.OwnerType,
		OwnerID:    job.OwnerID,
		Model:      job.Model,
		FromStatus: string(from),
		ToStatus:   string(to),
		Error:      errMsg,
		OccurredAt: s.now(),
	})
}

// failureMessage captures a safe description of a processing failure for
// the job row. Provider payloads never end up here.
func failureMessage(err error) string {
	var appErr *api.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "enhancement failed"
}
