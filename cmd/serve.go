package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel/internal/alerting"
	"github.com/tphakala/sentinel/internal/anomaly"
	"github.com/tphakala/sentinel/internal/api"
	v2 "github.com/tphakala/sentinel/internal/api/v2"
	"github.com/tphakala/sentinel/internal/authz"
	"github.com/tphakala/sentinel/internal/conf"
	"github.com/tphakala/sentinel/internal/datastore/v2/repository"
	"github.com/tphakala/sentinel/internal/enumeration"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/events"
	"github.com/tphakala/sentinel/internal/insights"
	"github.com/tphakala/sentinel/internal/lifecycle"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/scheduler"
	"github.com/tphakala/sentinel/internal/subscription"
	"github.com/tphakala/sentinel/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cron scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, settings)
		},
	}
}

func serve(ctx context.Context, settings *conf.Settings) error {
	log, logCloser := newLogger(settings.Logging)
	defer func() { _ = logCloser.Close() }()

	if err := telemetry.Init(telemetry.Settings{
		Enabled:     settings.Sentry.Enabled,
		DSN:         settings.Sentry.DSN,
		Environment: settings.Sentry.Environment,
		Release:     Version,
	}); err != nil {
		log.Warn("sentry disabled", logger.Error(err))
	}
	defer telemetry.Flush(2 * time.Second)

	store, err := openStore(settings.Database, log)
	if err != nil {
		telemetry.CaptureError(err, "datastore")
		return err
	}
	defer func() { _ = store.Close() }()
	db := store.DB()

	alertRepo := repository.NewAlertRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)
	itemRepo := repository.NewEnumerationItemRepository(db)
	groupRepo := repository.NewSubscriptionGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	access, err := newAccessControl(settings.Authz, log)
	if err != nil {
		return err
	}

	bus := events.NewBus(settings.Events.BufferSize, log)
	defer bus.Stop()
	if settings.Events.MQTT.Enabled {
		client, err := events.ConnectMQTT(events.MQTTConfig{
			Broker:   settings.Events.MQTT.Broker,
			ClientID: settings.Events.MQTT.ClientID,
			Username: settings.Events.MQTT.Username,
			Password: settings.Events.MQTT.Password,
		}, log)
		if err != nil {
			return err
		}
		defer disconnectMQTT(client)
		bus.Subscribe(events.NewMQTTForwarder(client, settings.Events.MQTT.TopicPrefix, log).Handle)
	}

	clock := clockwork.NewRealClock()

	var tasks scheduler.TaskScheduler = scheduler.NewDatabaseScheduler(taskRepo, clock, log)
	if nc := settings.Scheduler.NATS; nc.Enabled {
		js, closeNATS, err := scheduler.ConnectJetStream(ctx, scheduler.NATSConfig{
			URL:           nc.URL,
			Stream:        nc.Stream,
			SubjectPrefix: nc.SubjectPrefix,
		}, log)
		if err != nil {
			return err
		}
		defer closeNATS()
		tasks = scheduler.NewJetStreamNotifier(tasks, js, nc.SubjectPrefix, log)
	}

	var provider insights.Provider
	if is := settings.Insights; is.BaseURL != "" {
		provider = insights.NewCachedProvider(
			insights.NewHTTPProvider(is.BaseURL, nil, is.Timeout.Std()),
			clock, is.CacheTTL.Std())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := lifecycle.Deps{
		Clock:     clock,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Events:    bus,
		Metrics:   lifecycle.NewMetrics(registry),
		Logger:    log,
	}

	alerts := alerting.NewService(alerting.ConfigFromSettings(settings.Lifecycle), alerting.Deps{
		Alerts:             alertRepo,
		Anomalies:          anomalyRepo,
		EnumerationItems:   itemRepo,
		SubscriptionGroups: groupRepo,
		Access:             access,
		Tasks:              tasks,
		Insights:           provider,
		Lifecycle:          deps,
	})
	groups := subscription.NewService(subscription.Config{
		DefaultCron:              settings.Lifecycle.DefaultCron,
		CronMaxTriggersPerMinute: settings.Lifecycle.CronMaxTriggersPerMinute,
	}, groupRepo, access, deps)

	server := api.NewServer(api.Options{
		Services: v2.Services{
			Alerts:             alerts,
			SubscriptionGroups: groups,
			EnumerationItems:   enumeration.NewManager(itemRepo, alertRepo, access, deps),
			Anomalies:          anomaly.NewManager(anomalyRepo, alertRepo, itemRepo, access, deps),
		},
		Gatherer: registry,
		Checks: map[string]api.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		Debug:  settings.Server.Debug,
		Logger: log,
	})

	cron := scheduler.NewCronScheduler(alertRepo, tasks, clock, settings.Lifecycle.CronMaxTriggersPerMinute, log)
	cronDone := make(chan struct{})
	go func() {
		defer close(cronDone)
		cron.Run(ctx, settings.Lifecycle.CronSyncInterval.Std())
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(settings.Server.Listen)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serveErr:
		if err != nil {
			log.Error("http server stopped", logger.Error(err))
			telemetry.CaptureError(err, "http")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.Server.ShutdownTimeout.Std())
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http shutdown incomplete", logger.Error(shutdownErr))
	}
	<-cronDone
	return err
}

// newAccessControl loads the casbin policy file when one is configured.
// Without one the enforcer starts empty, so enforce mode denies everything.
func newAccessControl(s conf.AuthzSettings, log logger.Logger) (*authz.CasbinAccessControl, error) {
	mode := authz.ParseMode(s.Mode)
	if s.PolicyPath == "" {
		enforcer, err := authz.NewEnforcer(nil, nil)
		if err != nil {
			return nil, authzError(err)
		}
		if mode == authz.ModeEnforce {
			log.Warn("no authz policy configured, every request will be denied")
		}
		return authz.NewCasbinAccessControl(enforcer, mode, s.CacheTTL.Std(), log), nil
	}
	enforcer, err := authz.NewEnforcerFromFiles(s.ModelPath, s.PolicyPath)
	if err != nil {
		return nil, authzError(err)
	}
	return authz.NewCasbinAccessControl(enforcer, mode, s.CacheTTL.Std(), log), nil
}

func authzError(err error) error {
	return errors.New(err).
		Component("authz").
		Category(errors.CategoryConfiguration).
		Context("operation", "load_policy").
		Build()
}

func disconnectMQTT(client mqtt.Client) {
	client.Disconnect(250)
}
