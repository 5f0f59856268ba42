package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

const activityLogsRoot = "activity_logs"

// DefaultLogLimit is the number of entries the logs page shows.
const DefaultLogLimit = 100

type LogEntry struct {
	UserID      *string
	ActionType  string
	Module      string
	Description string
	Status      string
	IPAddress   string
	Metadata    map[string]any
}

// ActivityLogService is the append-only audit trail.
type ActivityLogService struct {
	store store.Store
	now   func() time.Time
}

func NewActivityLogService(st store.Store) *ActivityLogService {
	return &ActivityLogService{store: st, now: time.Now}
}

func (s *ActivityLogService) Log(ctx context.Context, e LogEntry) (*models.ActivityLog, error) {
	status := e.Status
	if status == "" {
		status = models.LogStatusSuccess
	}
	entry := models.ActivityLog{
		ID:          uuid.NewString(),
		UserID:      e.UserID,
		ActionType:  e.ActionType,
		Module:      e.Module,
		Description: e.Description,
		Status:      status,
		IPAddress:   e.IPAddress,
		Metadata:    e.Metadata,
		CreatedAt:   nowMillis(s.now),
	}
	if err := s.store.Set(ctx, store.Join(activityLogsRoot, entry.ID), entry); err != nil {
		return nil, fmt.Errorf("write activity log: %w", err)
	}
	return &entry, nil
}

// ListLogs returns at most limit entries, newest first. A non-positive
// limit uses DefaultLogLimit.
func (s *ActivityLogService) ListLogs(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	// ids are random, so key order says nothing about age
	children, err := s.store.Children(ctx, activityLogsRoot, 0)
	if err != nil {
		return nil, err
	}

	logs := make([]models.ActivityLog, 0, len(children))
	for _, c := range children {
		var entry models.ActivityLog
		if err := c.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode activity log %s: %w", c.Key, err)
		}
		entry.ID = c.Key
		logs = append(logs, entry)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt > logs[j].CreatedAt
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
