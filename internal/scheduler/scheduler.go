// Package scheduler records units of detection and notification work. The
// workers that execute tasks live outside this service; this package only
// persists and announces them.
package scheduler

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

// SystemPrincipal is recorded as the creator of scheduled tasks.
const SystemPrincipal = "sentinel"

// TaskRequest asks for work over the window [Start, End), epoch millis.
type TaskRequest struct {
	RefID     uint
	Type      entities.TaskType
	Namespace string
	Start     int64
	End       int64
}

// TaskScheduler records a task. A returned task is durably stored.
type TaskScheduler interface {
	Schedule(ctx context.Context, req TaskRequest) (*entities.Task, error)
}

// DatabaseScheduler stores WAITING tasks in the task table.
type DatabaseScheduler struct {
	repo  repository.TaskRepository
	clock clockwork.Clock
	log   logger.Logger
}

// NewDatabaseScheduler creates a DatabaseScheduler. A nil log discards output.
func NewDatabaseScheduler(repo repository.TaskRepository, clock clockwork.Clock, log logger.Logger) *DatabaseScheduler {
	if log == nil {
		log = logger.Discard()
	}
	return &DatabaseScheduler{repo: repo, clock: clock, log: log.Module("scheduler")}
}

// Schedule persists a task for req. Empty windows are allowed; inverted
// windows are rejected.
func (s *DatabaseScheduler) Schedule(ctx context.Context, req TaskRequest) (*entities.Task, error) {
	if req.End < req.Start {
		return nil, errors.Newf("task window end %d is before start %d", req.End, req.Start).
			Component("scheduler").
			Category(errors.CategoryValidation).
			Context("ref_id", req.RefID).
			Context("type", string(req.Type)).
			Build()
	}

	now := s.clock.Now().UTC()
	task := &entities.Task{
		BaseEntity: entities.BaseEntity{
			Namespace:  req.Namespace,
			CreatedBy:  SystemPrincipal,
			CreateTime: now,
			UpdatedBy:  SystemPrincipal,
			UpdateTime: now,
		},
		RefID:     req.RefID,
		Type:      req.Type,
		Status:    entities.TaskStatusWaiting,
		StartTime: req.Start,
		EndTime:   req.End,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, errors.New(err).
			Component("scheduler").
			Category(errors.CategoryScheduling).
			Context("ref_id", req.RefID).
			Context("type", string(req.Type)).
			Build()
	}

	s.log.Debug("task scheduled",
		logger.Uint64("task_id", uint64(task.ID)),
		logger.Uint64("ref_id", uint64(req.RefID)),
		logger.String("type", string(req.Type)),
		logger.Int64("start", req.Start),
		logger.Int64("end", req.End))
	return task, nil
}
