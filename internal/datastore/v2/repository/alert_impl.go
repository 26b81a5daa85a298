package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

// alertRepository implements AlertRepository.
type alertRepository struct {
	EntityRepository[entities.Alert]
	db *gorm.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		EntityRepository: NewEntityRepository[entities.Alert](db, "alert"),
		db:               db,
	}
}

// FindByName returns alerts with the given name in a namespace.
func (r *alertRepository) FindByName(ctx context.Context, namespace, name string) ([]entities.Alert, error) {
	var alerts []entities.Alert
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND name = ?", namespace, name).
		Order("id ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find alerts by name %q: %w", name, err)
	}
	return alerts, nil
}

// ListActive returns every active alert.
func (r *alertRepository) ListActive(ctx context.Context) ([]entities.Alert, error) {
	var alerts []entities.Alert
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// anomalyRepository implements AnomalyRepository.
type anomalyRepository struct {
	EntityRepository[entities.Anomaly]
	db *gorm.DB
}

// NewAnomalyRepository creates a new AnomalyRepository.
func NewAnomalyRepository(db *gorm.DB) AnomalyRepository {
	return &anomalyRepository{
		EntityRepository: NewEntityRepository[entities.Anomaly](db, "anomaly"),
		db:               db,
	}
}

// DeleteByAlertID deletes all anomalies of an alert.
func (r *anomalyRepository) DeleteByAlertID(ctx context.Context, alertID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("alert_id = ?", alertID).Delete(&entities.Anomaly{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete anomalies of alert %d: %w", alertID, result.Error)
	}
	return result.RowsAffected, nil
}

// CountByAlertID counts the anomalies of an alert.
func (r *anomalyRepository) CountByAlertID(ctx context.Context, alertID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.Anomaly{}).Where("alert_id = ?", alertID).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count anomalies of alert %d: %w", alertID, err)
	}
	return total, nil
}

// FeedbackCounts groups the anomalies matching filter by feedback type.
func (r *anomalyRepository) FeedbackCounts(ctx context.Context, filter Filter) (map[entities.AnomalyFeedbackType]int64, error) {
	var rows []struct {
		Feedback entities.AnomalyFeedbackType
		Total    int64
	}
	err := filter.apply(r.db.WithContext(ctx).Model(&entities.Anomaly{})).
		Where("feedback <> ?", "").
		Select("feedback, COUNT(*) AS total").
		Group("feedback").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count anomaly feedback: %w", err)
	}
	counts := make(map[entities.AnomalyFeedbackType]int64, len(rows))
	for _, row := range rows {
		counts[row.Feedback] = row.Total
	}
	return counts, nil
}

// enumerationItemRepository implements EnumerationItemRepository.
type enumerationItemRepository struct {
	EntityRepository[entities.EnumerationItem]
	db *gorm.DB
}

// NewEnumerationItemRepository creates a new EnumerationItemRepository.
func NewEnumerationItemRepository(db *gorm.DB) EnumerationItemRepository {
	return &enumerationItemRepository{
		EntityRepository: NewEntityRepository[entities.EnumerationItem](db, "enumeration item"),
		db:               db,
	}
}

// FindByAlertID returns the enumeration items of an alert.
func (r *enumerationItemRepository) FindByAlertID(ctx context.Context, alertID uint) ([]entities.EnumerationItem, error) {
	var items []entities.EnumerationItem
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to find enumeration items of alert %d: %w", alertID, err)
	}
	return items, nil
}

// DeleteByAlertID deletes the enumeration items of an alert.
func (r *enumerationItemRepository) DeleteByAlertID(ctx context.Context, alertID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("alert_id = ?", alertID).Delete(&entities.EnumerationItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete enumeration items of alert %d: %w", alertID, result.Error)
	}
	return result.RowsAffected, nil
}

// NewSubscriptionGroupRepository creates a new SubscriptionGroupRepository.
func NewSubscriptionGroupRepository(db *gorm.DB) SubscriptionGroupRepository {
	return NewEntityRepository[entities.SubscriptionGroup](db, "subscription group")
}

// taskRepository implements TaskRepository.
type taskRepository struct {
	EntityRepository[entities.Task]
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{
		EntityRepository: NewEntityRepository[entities.Task](db, "task"),
		db:               db,
	}
}

// ListByRef returns the tasks of a subject entity.
func (r *taskRepository) ListByRef(ctx context.Context, refID uint, taskType entities.TaskType) ([]entities.Task, error) {
	var tasks []entities.Task
	err := r.db.WithContext(ctx).
		Where("ref_id = ? AND type = ?", refID, taskType).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of %d: %w", refID, err)
	}
	return tasks, nil
}
