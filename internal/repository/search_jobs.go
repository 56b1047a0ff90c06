package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

func (r *Repository) CreateSearchJob(job *domain.SearchJob) error {
	query := `
		INSERT INTO search_jobs (id, session_id, kind, status, params, notify_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{job.ID, job.SessionID, job.Kind, job.Status, []byte(job.Params), job.NotifyEmail}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&job.CreatedAt, &job.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSearchJob(id string) (*domain.SearchJob, error) {
	query := `
		SELECT session_id, kind, status, params, error, result_count, notify_email, created_at, finished_at, version
		FROM search_jobs WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	job := &domain.SearchJob{ID: id}
	var params []byte
	var finishedAt sql.NullTime

	dst := []any{
		&job.SessionID,
		&job.Kind,
		&job.Status,
		&params,
		&job.Error,
		&job.ResultCount,
		&job.NotifyEmail,
		&job.CreatedAt,
		&finishedAt,
		&job.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	job.Params = params
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	return job, nil
}

// UpdateSearchJob 更新任务状态，版本号不匹配时返回 sql.ErrNoRows
func (r *Repository) UpdateSearchJob(job *domain.SearchJob) error {
	query := `
		UPDATE search_jobs
		SET
			status = $1,
			error = $2,
			result_count = $3,
			finished_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{job.Status, job.Error, job.ResultCount, job.FinishedAt, job.ID, job.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&job.Version); err != nil {
		return err
	}

	return nil
}
