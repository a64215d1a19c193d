package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// ClaimQueued advances a queued job to processing. The conditional
	// update guarantees at most one concurrent poll enters the processing
	// branch; false means another poll (or a cancel) got there first.
	ClaimQueued(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkSucceeded and MarkFailed finish a processing job. Both are
	// conditional on the job still being in processing state, so a cancel
	// that raced the in-flight provider call wins and the poll reacts to
	// the false return.
	MarkSucceeded(ctx context.Context, id uuid.UUID, outputKey string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)

	// CancelFrom flips a job observed in from state to canceled.
	CancelFrom(ctx context.Context, id uuid.UUID, from Status) (bool, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const jobColumns = `id, owner_type, owner_id, user_id, provider, model, params, status,
	input_key, input_content_type, input_size, output_key, error, use_credit,
	created_at, updated_at, started_at, finished_at`

func (r *postgresRepository) Create(ctx context.Context, job *Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshaling job params: %w", err)
	}

	query := `
		INSERT INTO ai_jobs (id, owner_type, owner_id, user_id, provider, model, params, status,
			input_key, input_content_type, input_size, use_credit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	_, err = r.pool.Exec(ctx, query,
		job.ID, job.OwnerType, job.OwnerID, job.UserID, job.Provider, job.Model, params,
		job.Status, job.InputKey, job.InputContentType, job.InputSize, job.UseCredit, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM ai_jobs WHERE id = $1`, jobColumns)

	job := &Job{}
	var params []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.OwnerType, &job.OwnerID, &job.UserID, &job.Provider, &job.Model,
		&params, &job.Status, &job.InputKey, &job.InputContentType, &job.InputSize,
		&job.OutputKey, &job.Error, &job.UseCredit,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying job by id: %w", err)
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, fmt.Errorf("unmarshaling job params: %w", err)
		}
	}
	return job, nil
}

func (r *postgresRepository) ClaimQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE ai_jobs
		SET status = 'processing', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'queued'`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("claiming queued job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, outputKey string) (bool, error) {
	query := `
		UPDATE ai_jobs
		SET status = 'succeeded', output_key = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	tag, err := r.pool.Exec(ctx, query, id, outputKey)
	if err != nil {
		return false, fmt.Errorf("marking job succeeded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	query := `
		UPDATE ai_jobs
		SET status = 'failed', error = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`

	tag, err := r.pool.Exec(ctx, query, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("marking job failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepository) CancelFrom(ctx context.Context, id uuid.UUID, from Status) (bool, error) {
	query := `
		UPDATE ai_jobs
		SET status = 'canceled', finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`

	tag, err := r.pool.Exec(ctx, query, id, from)
	if err != nil {
		return false, fmt.Errorf("canceling job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
