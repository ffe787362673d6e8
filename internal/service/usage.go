package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/chronos/internal/logger"
	"github.com/dtroode/chronos/internal/model"
)

const metadataSeparator = "|META:"

// UsageLogger records finished timer sessions for the signed-in user.
type UsageLogger struct {
	store  model.UsageStore
	logger *logger.Logger
	now    func() time.Time
}

// NewUsageLogger creates new UsageLogger.
func NewUsageLogger(store model.UsageStore, logger *logger.Logger) *UsageLogger {
	return &UsageLogger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// LogTimerUsage writes one timer usage entry. Metadata, when present, is
// folded into the category column as "<category>|META:<json>".
func (l *UsageLogger) LogTimerUsage(
	ctx context.Context,
	userID string,
	timerType string,
	duration time.Duration,
	category string,
	metadata map[string]any,
) error {
	if strings.TrimSpace(userID) == "" {
		l.logger.Warn("Usage logger: sync skipped, no valid user id",
			"timer_type", timerType)
		return model.ErrNoUser
	}
	if category == "" {
		category = model.DefaultUsageCategory
	}

	if metadata != nil {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		category = category + metadataSeparator + string(encoded)
	}

	entry := model.TimerLog{
		UserID:     userID,
		TimerType:  timerType,
		DurationMS: duration.Milliseconds(),
		Category:   category,
		CreatedAt:  l.now().UTC(),
	}

	l.logger.Debug("Usage logger: syncing session",
		"timer_type", timerType,
		"duration_ms", entry.DurationMS)

	if err := l.store.CreateTimerLog(ctx, entry); err != nil {
		l.logger.Error("Usage logger: database sync failed",
			"user_id", userID,
			"error", err.Error())
		return fmt.Errorf("failed to create timer log: %w", err)
	}
	return nil
}

// Recent returns the latest timer usage entries of userID.
func (l *UsageLogger) Recent(ctx context.Context, userID string, limit int) ([]model.TimerLog, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, model.ErrNoUser
	}
	if limit <= 0 {
		limit = 10
	}

	logs, err := l.store.ListTimerLogs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list timer logs: %w", err)
	}
	return logs, nil
}

// SplitCategory separates a stored category into its label and the
// metadata folded into it by LogTimerUsage.
func SplitCategory(stored string) (category string, metadata map[string]any) {
	label, encoded, found := strings.Cut(stored, metadataSeparator)
	if !found {
		return stored, nil
	}
	if err := json.Unmarshal([]byte(encoded), &metadata); err != nil {
		return stored, nil
	}
	return label, metadata
}
