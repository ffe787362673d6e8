package model

import (
	"context"
	"time"
)

// DefaultUsageCategory is used when a timer usage entry has no category.
const DefaultUsageCategory = "General"

// UsageStore persists timer usage entries.
type UsageStore interface {
	CreateTimerLog(ctx context.Context, log TimerLog) error
	ListTimerLogs(ctx context.Context, userID string, limit int) ([]TimerLog, error)
}

// TimerLog is one finished timer session.
type TimerLog struct {
	UserID     string
	TimerType  string
	DurationMS int64
	Category   string
	CreatedAt  time.Time
}
