package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
	"github.com/tphakala/sentinel/internal/logger"
)

// JetStreamPublisher is the subset of jetstream.JetStream used to announce tasks.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// TaskMessage is the payload announced for every recorded task.
type TaskMessage struct {
	TaskID    uint   `json:"taskId"`
	RefID     uint   `json:"refId"`
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// JetStreamNotifier decorates a TaskScheduler and publishes each recorded
// task to <prefix>.<type>. Publishing is best effort: the task is already
// stored when the announcement is attempted.
type JetStreamNotifier struct {
	next   TaskScheduler
	js     JetStreamPublisher
	prefix string
	log    logger.Logger
}

// NewJetStreamNotifier wraps next.
func NewJetStreamNotifier(next TaskScheduler, js JetStreamPublisher, subjectPrefix string, log logger.Logger) *JetStreamNotifier {
	if log == nil {
		log = logger.Discard()
	}
	return &JetStreamNotifier{
		next:   next,
		js:     js,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		log:    log.Module("scheduler").With(logger.String("transport", "jetstream")),
	}
}

// Subject returns the subject tasks of taskType are published to.
func (n *JetStreamNotifier) Subject(taskType entities.TaskType) string {
	return n.prefix + "." + strings.ToLower(string(taskType))
}

// MessageID derives the deduplication id of a task.
func MessageID(taskID uint) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "sentinel-task-%d", taskID)).String()
}

// Schedule records the task through the wrapped scheduler, then announces it.
func (n *JetStreamNotifier) Schedule(ctx context.Context, req TaskRequest) (*entities.Task, error) {
	task, err := n.next.Schedule(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(TaskMessage{
		TaskID:    task.ID,
		RefID:     task.RefID,
		Type:      string(task.Type),
		Namespace: task.Namespace,
		StartTime: task.StartTime,
		EndTime:   task.EndTime,
	})
	if err != nil {
		n.log.Error("failed to encode task message", logger.Uint64("task_id", uint64(task.ID)), logger.Error(err))
		return task, nil
	}

	subject := n.Subject(task.Type)
	if _, err := n.js.Publish(ctx, subject, payload, jetstream.WithMsgID(MessageID(task.ID))); err != nil {
		n.log.Warn("failed to announce task",
			logger.Uint64("task_id", uint64(task.ID)),
			logger.String("subject", subject),
			logger.Error(err))
		return task, nil
	}
	return task, nil
}

// NATSConfig configures the JetStream connection.
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// ConnectJetStream connects to NATS and makes sure the task stream exists.
// The returned close function drains the connection.
func ConnectJetStream(ctx context.Context, cfg NATSConfig, log logger.Logger) (jetstream.JetStream, func(), error) {
	log = log.Module("scheduler")
	nc, err := nats.Connect(cfg.URL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, networkError("connect", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, networkError("jetstream", cfg.URL, err)
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Subjects:    []string{prefix + ".>"},
		Description: "Scheduled detection and notification tasks",
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, nil, networkError("create_stream", cfg.URL, err)
	}

	log.Info("jetstream task stream ready", logger.String("stream", cfg.Stream), logger.String("subjects", prefix+".>"))
	return js, func() { _ = nc.Drain() }, nil
}

func networkError(operation, url string, err error) error {
	return errors.New(err).
		Component("scheduler").
		Category(errors.CategoryNetwork).
		Context("operation", operation).
		Context("url", url).
		Build()
}
