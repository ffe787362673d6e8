package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/chronos/internal/model"
)

var _ model.UsageStore = (*TimerLogRepository)(nil)

type TimerLogRepository struct {
	db *Connection
}

func NewTimerLogRepository(db *Connection) *TimerLogRepository {
	return &TimerLogRepository{
		db: db,
	}
}

func (r *TimerLogRepository) CreateTimerLog(ctx context.Context, log model.TimerLog) error {
	userID, err := uuid.Parse(log.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", log.UserID, model.ErrNoUser)
	}

	query := `INSERT INTO timer_logs (user_id, timer_type, duration_ms, category, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(ctx, query, userID, log.TimerType, log.DurationMS, log.Category, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create timer log: %w", err)
	}
	return nil
}

// ListTimerLogs returns the entries of userID, newest first.
func (r *TimerLogRepository) ListTimerLogs(ctx context.Context, userID string, limit int) ([]model.TimerLog, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, model.ErrNoUser)
	}

	query := `SELECT user_id, timer_type, duration_ms, category, created_at
			  FROM timer_logs WHERE user_id = $1
			  ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list timer logs: %w", err)
	}
	defer rows.Close()

	var logs []model.TimerLog
	for rows.Next() {
		var (
			log   model.TimerLog
			owner uuid.UUID
		)
		if err := rows.Scan(&owner, &log.TimerType, &log.DurationMS, &log.Category, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timer log: %w", err)
		}
		log.UserID = owner.String()
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate timer logs: %w", err)
	}

	return logs, nil
}
