package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/schedule"
)

// fireTimeout bounds the work done by a single cron firing.
const fireTimeout = 30 * time.Second

type cronEntry struct {
	id   cron.EntryID
	spec string
}

// CronScheduler keeps one cron entry per active alert. Each firing schedules
// detection over [alert.LastTimestamp, now).
type CronScheduler struct {
	alerts       repository.AlertRepository
	tasks        TaskScheduler
	clock        clockwork.Clock
	maxPerMinute int
	log          logger.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[uint]cronEntry
}

// NewCronScheduler creates a CronScheduler. Alerts whose cron fires more than
// maxPerMinute times per minute are not scheduled.
func NewCronScheduler(alerts repository.AlertRepository, tasks TaskScheduler, clock clockwork.Clock, maxPerMinute int, log logger.Logger) *CronScheduler {
	if log == nil {
		log = logger.Discard()
	}
	return &CronScheduler{
		alerts:       alerts,
		tasks:        tasks,
		clock:        clock,
		maxPerMinute: maxPerMinute,
		log:          log.Module("cron"),
		cron:         cron.New(cron.WithLocation(time.UTC)),
		entries:      make(map[uint]cronEntry),
	}
}

// Sync reconciles cron entries with the active alerts: new alerts are added,
// changed schedules are replaced and inactive or deleted alerts are removed.
func (s *CronScheduler) Sync(ctx context.Context) error {
	active, err := s.alerts.ListActive(ctx)
	if err != nil {
		return errors.New(err).
			Component("scheduler").
			Category(errors.CategoryDatabase).
			Context("operation", "cron_sync").
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint]struct{}, len(active))
	for i := range active {
		alert := &active[i]
		seen[alert.ID] = struct{}{}

		if current, ok := s.entries[alert.ID]; ok {
			if current.spec == alert.Cron {
				continue
			}
			s.cron.Remove(current.id)
			delete(s.entries, alert.ID)
		}

		if err := schedule.Validate(alert.Cron, s.maxPerMinute); err != nil {
			s.log.Warn("refusing to schedule alert",
				logger.Uint64("alert_id", uint64(alert.ID)),
				logger.String("cron", alert.Cron),
				logger.Error(err))
			continue
		}
		sched, err := schedule.Parse(alert.Cron)
		if err != nil {
			continue
		}

		alertID := alert.ID
		entryID := s.cron.Schedule(sched, cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
			defer cancel()
			if err := s.fire(ctx, alertID); err != nil {
				s.log.Error("scheduled detection failed", logger.Uint64("alert_id", uint64(alertID)), logger.Error(err))
			}
		}))
		s.entries[alertID] = cronEntry{id: entryID, spec: alert.Cron}
	}

	for alertID, entry := range s.entries {
		if _, ok := seen[alertID]; !ok {
			s.cron.Remove(entry.id)
			delete(s.entries, alertID)
		}
	}
	return nil
}

// fire schedules detection for one alert from its watermark up to now. The
// alert is reloaded so the latest watermark is used.
func (s *CronScheduler) fire(ctx context.Context, alertID uint) error {
	alert, err := s.alerts.Get(ctx, alertID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !alert.Active {
		return nil
	}

	now := s.clock.Now().UnixMilli()
	if alert.LastTimestamp >= now {
		return nil
	}
	_, err = s.tasks.Schedule(ctx, TaskRequest{
		RefID:     alert.ID,
		Type:      entities.TaskTypeDetection,
		Namespace: alert.Namespace,
		Start:     alert.LastTimestamp,
		End:       now,
	})
	return err
}

// Scheduled returns the number of alerts with a cron entry.
func (s *CronScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run starts the cron runner, syncs immediately and then every interval until
// ctx is cancelled. It blocks until running jobs have finished.
func (s *CronScheduler) Run(ctx context.Context, interval time.Duration) {
	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
	}()

	if err := s.Sync(ctx); err != nil {
		s.log.Error("cron sync failed", logger.Error(err))
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.Sync(ctx); err != nil {
				s.log.Error("cron sync failed", logger.Error(err))
			}
		}
	}
}
