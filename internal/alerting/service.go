package alerting

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/events"
	"github.com/tphakala/sentinel/internal/insights"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/model"
	"github.com/tphakala/sentinel/internal/scheduler"
)

// OpReset is the metrics operation name of Reset.
const OpReset = "reset"

// AlertManager is the lifecycle manager specialised for alerts.
type AlertManager = lifecycle.Manager[*model.Alert, entities.Alert, *entities.Alert]

// Deps are the collaborators of a Service.
type Deps struct {
	Alerts             repository.AlertRepository
	Anomalies          repository.AnomalyRepository
	EnumerationItems   repository.EnumerationItemRepository
	SubscriptionGroups repository.SubscriptionGroupRepository
	Access             authz.AccessControl
	Tasks              scheduler.TaskScheduler
	// Insights is optional; without it the floor is always the platform minimum.
	Insights  insights.Provider
	Evaluator Evaluator
	Lifecycle lifecycle.Deps
}

// Service exposes the alert lifecycle. The generic operations (List, Get,
// CreateMultiple, EditMultiple, Delete, DeleteAll, Count) come from the
// embedded manager.
type Service struct {
	*AlertManager

	hooks     *Hooks
	alerts    repository.AlertRepository
	anomalies repository.AnomalyRepository
	access    authz.AccessControl
	tasks     scheduler.TaskScheduler
	evaluator Evaluator
	validate  *validator.Validate
	clock     clockwork.Clock
	cfg       Config
	log       logger.Logger
}

// NewService wires the alert policy into a lifecycle manager.
func NewService(cfg Config, deps Deps) *Service {
	cfg = cfg.withDefaults()
	if deps.Lifecycle.Clock == nil {
		deps.Lifecycle.Clock = clockwork.NewRealClock()
	}
	if deps.Lifecycle.Logger == nil {
		deps.Lifecycle.Logger = logger.Discard()
	}
	if deps.Lifecycle.Validator == nil {
		deps.Lifecycle.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	if deps.Evaluator == nil {
		deps.Evaluator = NewReplayEvaluator(deps.Anomalies, deps.EnumerationItems)
	}
	log := deps.Lifecycle.Logger.Module("alerting")

	hooks := &Hooks{
		BaseHooks: lifecycle.BaseHooks[entities.Alert, *entities.Alert]{Repo: deps.Alerts},
		alerts:    deps.Alerts,
		access:    deps.Access,
		deleter:   NewDeleter(deps.Alerts, deps.Anomalies, deps.EnumerationItems, deps.SubscriptionGroups, deps.Lifecycle.Logger),
		tasks:     deps.Tasks,
		insights:  deps.Insights,
		clock:     deps.Lifecycle.Clock,
		cfg:       cfg,
		log:       log,
	}

	return &Service{
		AlertManager: lifecycle.NewManager[*model.Alert, entities.Alert, *entities.Alert](
			deps.Alerts, deps.Access, hooks, Fields, deps.Lifecycle),
		hooks:     hooks,
		alerts:    deps.Alerts,
		anomalies: deps.Anomalies,
		access:    deps.Access,
		tasks:     deps.Tasks,
		evaluator: deps.Evaluator,
		validate:  deps.Lifecycle.Validator,
		clock:     deps.Lifecycle.Clock,
		cfg:       cfg,
		log:       log,
	}
}

// ValidateMultiple runs the create or edit validation of every item without
// persisting anything.
func (s *Service) ValidateMultiple(ctx context.Context, p authz.Principal, items []*model.Alert) error {
	for _, item := range items {
		if item == nil {
			return invalid("alert is required")
		}
		var existing *entities.Alert
		if item.ID != nil {
			loaded, err := s.Load(ctx, *item.ID)
			if err != nil {
				return err
			}
			existing = loaded
		}
		if err := s.validate.StructCtx(ctx, item); err != nil {
			return errors.New(err).Component("alerting").Category(errors.CategoryValidation).Build()
		}
		if err := s.hooks.Validate(ctx, p, item, existing); err != nil {
			return err
		}

		target := existing
		if target == nil {
			target = model.ToAlertEntity(item)
			s.access.EnrichNamespace(p, target)
		}
		if err := s.access.EnsureCanRead(ctx, p, target); err != nil {
			return err
		}
	}
	return nil
}

// Reset discards the alert's detection history: its anomalies are deleted,
// the watermark is rewound to the backfill floor and a full replay is
// scheduled. Enumeration items and subscription groups are left untouched.
func (s *Service) Reset(ctx context.Context, p authz.Principal, id uint) (*model.Alert, error) {
	out, err := s.reset(ctx, p, id)
	s.Observe(OpReset, err)
	return out, err
}

func (s *Service) reset(ctx context.Context, p authz.Principal, id uint) (*model.Alert, error) {
	alert, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureNamespace(p, alert); err != nil {
		return nil, err
	}
	if err := s.access.EnsureHasAccess(ctx, p, alert, authz.ActionUpdate); err != nil {
		return nil, err
	}

	// Not atomic with detection: a task scheduled by an earlier edit may still
	// complete after this point and write anomalies or advance the watermark.
	deleted, err := s.anomalies.DeleteByAlertID(ctx, alert.ID)
	if err != nil {
		return nil, databaseError("delete_anomalies", alert.ID, err)
	}

	now := s.clock.Now()
	floor := s.hooks.floor(ctx, alert)
	alert.LastTimestamp = floor
	alert.UpdatedBy = p.Name
	alert.UpdateTime = now.UTC()
	if err := s.alerts.Update(ctx, alert); err != nil {
		return nil, databaseError("update_alert", alert.ID, err)
	}

	s.hooks.scheduleDetection(ctx, alert, floor, now.UnixMilli())
	s.Notify(events.EventReset, p, alert)
	s.log.Info("alert reset",
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.Int64("anomalies_deleted", deleted),
		logger.Int64("last_timestamp", floor),
		logger.String("principal", p.Name))
	return s.hooks.ToAPI(alert), nil
}

// Evaluate runs the alert described by req without persisting results. A
// saved alert requires read access, an unsaved one create access. Results
// scoped to enumeration items the principal cannot read are dropped.
func (s *Service) Evaluate(ctx context.Context, p authz.Principal, req *model.AlertEvaluation) (*model.AlertEvaluation, error) {
	if req == nil || req.Alert == nil {
		return nil, invalid("evaluation requires an alert")
	}
	end := s.safeEndTime(req.End)
	if req.Start > end {
		return nil, invalid("evaluation start is after end")
	}

	submitted := *req.Alert
	submitted.Owner = p.Name
	alert := model.ToAlertEntity(&submitted)
	if submitted.ID != nil {
		stored, err := s.Load(ctx, *submitted.ID)
		if err != nil {
			return nil, err
		}
		if err := s.access.EnsureNamespace(p, stored); err != nil {
			return nil, err
		}
		if err := s.access.EnsureCanRead(ctx, p, stored); err != nil {
			return nil, err
		}
		alert.Namespace = stored.Namespace
	} else {
		s.access.EnrichNamespace(p, alert)
		if err := s.access.EnsureCanCreate(ctx, p, alert); err != nil {
			return nil, err
		}
	}

	results, err := s.evaluator.Evaluate(ctx, alert, req.Start, end)
	if err != nil {
		return nil, errors.New(err).
			Component("alerting").
			Category(errors.CategoryGeneric).
			Context("operation", "evaluate").
			Build()
	}

	visible := make(map[string]model.DetectionEvaluation, len(results))
	for key, result := range results {
		if result.EnumerationItem != nil {
			item := model.ToEnumerationItemEntity(result.EnumerationItem)
			if item.Namespace == "" {
				item.Namespace = alert.Namespace
			}
			if !s.access.CanRead(ctx, p, item) {
				continue
			}
		}
		visible[key] = result
	}

	return &model.AlertEvaluation{
		Alert:                &submitted,
		Start:                req.Start,
		End:                  &end,
		DetectionEvaluations: visible,
	}, nil
}

// RunTask schedules detection for a saved alert over [start, end). A nil end
// means now; ends too far in the future are clamped.
func (s *Service) RunTask(ctx context.Context, p authz.Principal, id uint, start, end *int64) (*model.Task, error) {
	alert, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, invalid("start is required")
	}
	if err := s.access.EnsureNamespace(p, alert); err != nil {
		return nil, err
	}
	if err := s.access.EnsureHasAccess(ctx, p, alert, authz.ActionUpdate); err != nil {
		return nil, err
	}

	task, err := s.tasks.Schedule(ctx, scheduler.TaskRequest{
		RefID:     alert.ID,
		Type:      entities.TaskTypeDetection,
		Namespace: alert.Namespace,
		Start:     *start,
		End:       s.safeEndTime(end),
	})
	if err != nil {
		return nil, err
	}
	return model.TaskFromEntity(task), nil
}

// Insights reports the data interval of the alert's dataset and the default
// backfill window.
func (s *Service) Insights(ctx context.Context, p authz.Principal, id uint) (*model.AlertInsights, error) {
	alert, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureNamespace(p, alert); err != nil {
		return nil, err
	}
	if err := s.access.EnsureCanRead(ctx, p, alert); err != nil {
		return nil, err
	}
	return s.insightsOf(ctx, alert), nil
}

// InsightsFor is Insights for an alert that has not been saved. The alert is
// placed in the principal's namespace when it names none.
func (s *Service) InsightsFor(ctx context.Context, p authz.Principal, req *model.AlertInsightsRequest) (*model.AlertInsights, error) {
	if req == nil || req.Alert == nil {
		return nil, invalid("insights require an alert")
	}
	alert := model.ToAlertEntity(req.Alert)
	s.access.EnrichNamespace(p, alert)
	if err := s.access.EnsureNamespace(p, alert); err != nil {
		return nil, err
	}
	if err := s.access.EnsureCanRead(ctx, p, alert); err != nil {
		return nil, err
	}
	return s.insightsOf(ctx, alert), nil
}

// StatsQuery narrows Stats. Nil fields do not filter.
type StatsQuery struct {
	EnumerationItemID *uint
	Start             *int64
	End               *int64
}

// Stats counts the parent anomalies of an alert, optionally restricted to an
// enumeration item and to anomalies inside [Start, End], and breaks down the
// feedback recorded on them.
func (s *Service) Stats(ctx context.Context, p authz.Principal, id uint, q StatsQuery) (*model.AnomalyStats, error) {
	alert, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureNamespace(p, alert); err != nil {
		return nil, err
	}
	if err := s.access.EnsureCanRead(ctx, p, alert); err != nil {
		return nil, err
	}

	filter := repository.Filter{}.
		Where("alert_id", repository.OpEq, alert.ID).
		Where("is_child", repository.OpEq, false)
	if q.EnumerationItemID != nil {
		filter = filter.Where("enumeration_item_id", repository.OpEq, *q.EnumerationItemID)
	}
	if q.Start != nil {
		filter = filter.Where("start_time", repository.OpGte, *q.Start)
	}
	if q.End != nil {
		filter = filter.Where("end_time", repository.OpLte, *q.End)
	}

	total, err := s.anomalies.Count(ctx, filter)
	if err != nil {
		return nil, databaseError("count_anomalies", alert.ID, err)
	}
	counts, err := s.anomalies.FeedbackCounts(ctx, filter)
	if err != nil {
		return nil, databaseError("count_feedback", alert.ID, err)
	}

	out := &model.AnomalyStats{
		TotalCount:    total,
		FeedbackStats: make(map[string]int64, len(entities.AnomalyFeedbackTypes)),
	}
	for _, feedback := range entities.AnomalyFeedbackTypes {
		out.FeedbackStats[string(feedback)] = counts[feedback]
	}
	for _, n := range counts {
		out.CountWithFeedback += n
	}
	return out, nil
}

func (s *Service) insightsOf(ctx context.Context, alert *entities.Alert) *model.AlertInsights {
	now := s.clock.Now().UnixMilli()
	out := &model.AlertInsights{
		DefaultStartTime: s.cfg.MinimumOnboardingStartTime,
		DefaultEndTime:   now,
	}
	if s.hooks.insights == nil {
		return out
	}

	interval, err := s.hooks.insights.DatasetInterval(ctx, alert)
	if err != nil {
		s.log.Warn("could not resolve dataset interval",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.Error(err))
		return out
	}
	out.DatasetStartTime = interval.Start
	out.DatasetEndTime = interval.End
	if interval.Start != nil {
		out.DefaultStartTime = max(*interval.Start, s.cfg.MinimumOnboardingStartTime)
	}
	if interval.End != nil && *interval.End < now {
		out.DefaultEndTime = *interval.End
	}
	return out
}

// safeEndTime resolves a requested end: nil means now, and anything beyond
// now plus the clock margin is clamped to that limit.
func (s *Service) safeEndTime(end *int64) int64 {
	now := s.clock.Now()
	if end == nil {
		return now.UnixMilli()
	}
	limit := now.Add(s.cfg.EndTimeClockMargin).UnixMilli()
	if *end > limit {
		s.log.Warn("end time is in the future, clamping",
			logger.Int64("requested_end", *end),
			logger.Int64("now", now.UnixMilli()),
			logger.Int64("clamped_end", limit))
		return limit
	}
	return *end
}

func databaseError(operation string, alertID uint, err error) error {
	return errors.New(err).
		Component("alerting").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("alert_id", alertID).
		Build()
}
