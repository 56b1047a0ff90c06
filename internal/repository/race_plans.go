package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// ReplaceRacePlans 先删除队伍之前的比赛方案，再按顺序插入新的方案
func (r *Repository) ReplaceRacePlans(sessionID string, plans []*domain.RacePlan) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `DELETE FROM race_plans WHERE session_id = $1`
	if _, err := tx.ExecContext(ctx, query, sessionID); err != nil {
		return err
	}

	query = `
		INSERT INTO race_plans (id, session_id, rank, total_score, sampled, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, plan := range plans {
		data, err := json.Marshal(plan)
		if err != nil {
			return err
		}

		args := []any{plan.ID, sessionID, i, plan.TotalScore(), plan.Sampled, data, plan.CreatedAt}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRacePlans(sessionID string) ([]*domain.RacePlan, error) {
	query := `
		SELECT data FROM race_plans
		WHERE session_id = $1
		ORDER BY rank
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]*domain.RacePlan, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		plan := &domain.RacePlan{}
		if err := json.Unmarshal(data, plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *Repository) GetRacePlan(sessionID, planID string) (*domain.RacePlan, error) {
	query := `SELECT data FROM race_plans WHERE session_id = $1 AND id = $2`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var data []byte
	if err := r.dbpool.QueryRowContext(ctx, query, sessionID, planID).Scan(&data); err != nil {
		return nil, err
	}

	plan := &domain.RacePlan{}
	if err := json.Unmarshal(data, plan); err != nil {
		return nil, err
	}

	return plan, nil
}
