package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

func (r *Repository) CreateSession(s *domain.Session) error {
	snapshot, err := s.MarshalSnapshot()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, name, snapshot)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	dst := []any{&s.CreatedAt, &s.UpdatedAt, &s.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, s.ID, s.Name, snapshot).Scan(dst...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSessionByID(id string) (*domain.Session, error) {
	query := `
		SELECT name, snapshot, created_at, updated_at, version
		FROM sessions WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	s := &domain.Session{ID: id}
	var snapshot []byte

	dst := []any{&s.Name, &snapshot, &s.CreatedAt, &s.UpdatedAt, &s.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	if err := s.UnmarshalSnapshot(snapshot); err != nil {
		return nil, err
	}

	return s, nil
}

func (r *Repository) GetAllSessions() ([]*domain.Session, error) {
	query := `
		SELECT id, name, snapshot, created_at, updated_at, version
		FROM sessions
		ORDER BY updated_at DESC
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*domain.Session, 0)
	for rows.Next() {
		s := &domain.Session{}
		var snapshot []byte

		dst := []any{&s.ID, &s.Name, &snapshot, &s.CreatedAt, &s.UpdatedAt, &s.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := s.UnmarshalSnapshot(snapshot); err != nil {
			return nil, err
		}

		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// UpdateSession 使用乐观锁保存整个快照，版本号不匹配时返回 sql.ErrNoRows
func (r *Repository) UpdateSession(s *domain.Session) error {
	snapshot, err := s.MarshalSnapshot()
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET
			name = $1,
			snapshot = $2,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING updated_at, version
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{s.Name, snapshot, s.ID, s.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&s.UpdatedAt, &s.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteSession(id string) error {
	query := `DELETE FROM sessions WHERE id = $1`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
