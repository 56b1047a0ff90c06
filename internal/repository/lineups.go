package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
)

// ReplaceSavedLineups 用新的阵容池整体替换队伍已保存的阵容，lineups 的顺序即为排名
func (r *Repository) ReplaceSavedLineups(sessionID string, lineups []*domain.LineupCandidate) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `DELETE FROM saved_lineups WHERE session_id = $1`
	if _, err := tx.ExecContext(ctx, query, sessionID); err != nil {
		return err
	}

	query = `
		INSERT INTO saved_lineups (session_id, id, rank, tt_sum, weight_diff, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, lineup := range lineups {
		data, err := json.Marshal(lineup)
		if err != nil {
			return err
		}

		args := []any{sessionID, lineup.ID, i, lineup.TTSum, lineup.WeightDiff, data, lineup.CreatedAt}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSavedLineups(sessionID string) ([]*domain.LineupCandidate, error) {
	query := `
		SELECT data FROM saved_lineups
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

	lineups := make([]*domain.LineupCandidate, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		lineup := &domain.LineupCandidate{}
		if err := json.Unmarshal(data, lineup); err != nil {
			return nil, err
		}
		lineups = append(lineups, lineup)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lineups, nil
}

func (r *Repository) GetSavedLineup(sessionID, lineupID string) (*domain.LineupCandidate, error) {
	query := `SELECT data FROM saved_lineups WHERE session_id = $1 AND id = $2`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var data []byte
	if err := r.dbpool.QueryRowContext(ctx, query, sessionID, lineupID).Scan(&data); err != nil {
		return nil, err
	}

	lineup := &domain.LineupCandidate{}
	if err := json.Unmarshal(data, lineup); err != nil {
		return nil, err
	}

	return lineup, nil
}

func (r *Repository) DeleteSavedLineup(sessionID, lineupID string) error {
	query := `DELETE FROM saved_lineups WHERE session_id = $1 AND id = $2`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, query, sessionID, lineupID)
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
