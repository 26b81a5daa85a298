// Package subscription implements the subscription group policy and the
// reconciliation of alert associations across edits.
package subscription

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/events"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/model"
)

// OpReset is the metrics operation name of Reset.
const OpReset = "reset"

// Config holds the subscription group policy settings.
type Config struct {
	DefaultCron              string
	CronMaxTriggersPerMinute int
}

// Fields maps subscription group query parameters to columns.
var Fields = lifecycle.Fields{
	"name":   lifecycle.StringField("name"),
	"cron":   lifecycle.StringField("cron"),
	"active": lifecycle.BoolField("active"),
}

// GroupManager is the lifecycle manager specialised for subscription groups.
type GroupManager = lifecycle.Manager[*model.SubscriptionGroup, entities.SubscriptionGroup, *entities.SubscriptionGroup]

// Service exposes the subscription group lifecycle.
type Service struct {
	*GroupManager

	groups repository.SubscriptionGroupRepository
	access authz.AccessControl
	clock  clockwork.Clock
	log    logger.Logger
}

// NewService wires the subscription group policy into a lifecycle manager.
func NewService(cfg Config, groups repository.SubscriptionGroupRepository, access authz.AccessControl, deps lifecycle.Deps) *Service {
	if cfg.DefaultCron == "" {
		cfg.DefaultCron = "0 * * * * *"
	}
	if cfg.CronMaxTriggersPerMinute <= 0 {
		cfg.CronMaxTriggersPerMinute = 6
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	hooks := &Hooks{
		BaseHooks: lifecycle.BaseHooks[entities.SubscriptionGroup, *entities.SubscriptionGroup]{Repo: groups},
		clock:     deps.Clock,
		cfg:       cfg,
	}
	return &Service{
		GroupManager: lifecycle.NewManager[*model.SubscriptionGroup, entities.SubscriptionGroup, *entities.SubscriptionGroup](
			groups, access, hooks, Fields, deps),
		groups: groups,
		access: access,
		clock:  deps.Clock,
		log:    deps.Logger.Module("subscription"),
	}
}

// Reset clears the completion watermark of every association so that
// notification evaluation starts over. Associations are kept.
func (s *Service) Reset(ctx context.Context, p authz.Principal, id uint) (*model.SubscriptionGroup, error) {
	out, err := s.reset(ctx, p, id)
	s.Observe(OpReset, err)
	return out, err
}

func (s *Service) reset(ctx context.Context, p authz.Principal, id uint) (*model.SubscriptionGroup, error) {
	group, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureNamespace(p, group); err != nil {
		return nil, err
	}
	if err := s.access.EnsureHasAccess(ctx, p, group, authz.ActionUpdate); err != nil {
		return nil, err
	}

	for i := range group.AlertAssociations {
		group.AlertAssociations[i].AnomalyCompletionWatermark = nil
	}
	group.UpdatedBy = p.Name
	group.UpdateTime = s.clock.Now().UTC()
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, errors.New(err).
			Component("subscription").
			Category(errors.CategoryDatabase).
			Context("operation", "reset").
			Context("group_id", id).
			Build()
	}

	s.Notify(events.EventReset, p, group)
	s.log.Info("subscription group reset",
		logger.Uint64("group_id", uint64(group.ID)),
		logger.Int("associations", len(group.AlertAssociations)),
		logger.String("principal", p.Name))
	return model.SubscriptionGroupFromEntity(group), nil
}
