package repository

import (
	"context"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

// AlertRepository handles alert rows.
type AlertRepository interface {
	EntityRepository[entities.Alert]

	// FindByName returns alerts named name within namespace.
	FindByName(ctx context.Context, namespace, name string) ([]entities.Alert, error)
	// ListActive returns all active alerts across namespaces.
	ListActive(ctx context.Context) ([]entities.Alert, error)
}

// AnomalyRepository handles anomaly rows.
type AnomalyRepository interface {
	EntityRepository[entities.Anomaly]

	// DeleteByAlertID removes every anomaly of an alert. It is idempotent.
	DeleteByAlertID(ctx context.Context, alertID uint) (int64, error)
	CountByAlertID(ctx context.Context, alertID uint) (int64, error)
	// FeedbackCounts counts the anomalies matching filter that carry feedback,
	// per feedback type. Types without rows are absent.
	FeedbackCounts(ctx context.Context, filter Filter) (map[entities.AnomalyFeedbackType]int64, error)
}

// EnumerationItemRepository handles enumeration item rows.
type EnumerationItemRepository interface {
	EntityRepository[entities.EnumerationItem]

	FindByAlertID(ctx context.Context, alertID uint) ([]entities.EnumerationItem, error)
	// DeleteByAlertID removes every enumeration item of an alert. It is idempotent.
	DeleteByAlertID(ctx context.Context, alertID uint) (int64, error)
}

// SubscriptionGroupRepository handles subscription group rows.
type SubscriptionGroupRepository interface {
	EntityRepository[entities.SubscriptionGroup]
}

// TaskRepository handles task rows. Tasks are append-only here.
type TaskRepository interface {
	EntityRepository[entities.Task]

	// ListByRef returns the tasks of a subject entity in creation order.
	ListByRef(ctx context.Context, refID uint, taskType entities.TaskType) ([]entities.Task, error)
}
