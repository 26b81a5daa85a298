// Package conf loads service configuration from YAML files and environment
// variables using viper.
package conf

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/sentinel/internal/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// SENTINEL_DATABASE_TYPE=mysql.
const EnvPrefix = "SENTINEL"

// Settings is the complete service configuration.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server" yaml:"server" json:"server"`
	Database  DatabaseSettings  `mapstructure:"database" yaml:"database" json:"database"`
	Lifecycle LifecycleSettings `mapstructure:"lifecycle" yaml:"lifecycle" json:"lifecycle"`
	Authz     AuthzSettings     `mapstructure:"authz" yaml:"authz" json:"authz"`
	Insights  InsightsSettings  `mapstructure:"insights" yaml:"insights" json:"insights"`
	Scheduler SchedulerSettings `mapstructure:"scheduler" yaml:"scheduler" json:"scheduler"`
	Events    EventsSettings    `mapstructure:"events" yaml:"events" json:"events"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging" json:"logging"`
	Sentry    SentrySettings    `mapstructure:"sentry" yaml:"sentry" json:"sentry"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Listen          string   `mapstructure:"listen" yaml:"listen" json:"listen"`
	ShutdownTimeout Duration `mapstructure:"shutdowntimeout" yaml:"shutdowntimeout" json:"shutdownTimeout"`
	Debug           bool     `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	Type  string `mapstructure:"type" yaml:"type" json:"type"` // sqlite, mysql or postgres
	Path  string `mapstructure:"path" yaml:"path" json:"path"` // sqlite file
	DSN   string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`    // mysql / postgres
	Debug bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
}

// LifecycleSettings holds the alert scheduling policy knobs.
type LifecycleSettings struct {
	// MinimumOnboardingStartTime is the platform floor for backfills, epoch millis.
	MinimumOnboardingStartTime int64    `mapstructure:"minimumonboardingstarttime" yaml:"minimumonboardingstarttime" json:"minimumOnboardingStartTime"`
	DefaultCron                string   `mapstructure:"defaultcron" yaml:"defaultcron" json:"defaultCron"`
	CronMaxTriggersPerMinute   int      `mapstructure:"cronmaxtriggersperminute" yaml:"cronmaxtriggersperminute" json:"cronMaxTriggersPerMinute"`
	EndTimeClockMargin         Duration `mapstructure:"endtimeclockmargin" yaml:"endtimeclockmargin" json:"endTimeClockMargin"`
	CronSyncInterval           Duration `mapstructure:"cronsyncinterval" yaml:"cronsyncinterval" json:"cronSyncInterval"`
}

// AuthzSettings configures the casbin access control.
type AuthzSettings struct {
	Mode       string   `mapstructure:"mode" yaml:"mode" json:"mode"` // enforce, shadow or disabled
	ModelPath  string   `mapstructure:"modelpath" yaml:"modelpath" json:"modelPath"`
	PolicyPath string   `mapstructure:"policypath" yaml:"policypath" json:"policyPath"`
	CacheTTL   Duration `mapstructure:"cachettl" yaml:"cachettl" json:"cacheTTL"`
}

// InsightsSettings configures the dataset insights client.
type InsightsSettings struct {
	BaseURL  string   `mapstructure:"baseurl" yaml:"baseurl" json:"baseURL"`
	Timeout  Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	CacheTTL Duration `mapstructure:"cachettl" yaml:"cachettl" json:"cacheTTL"`
}

// SchedulerSettings configures task fan-out.
type SchedulerSettings struct {
	NATS NATSSettings `mapstructure:"nats" yaml:"nats" json:"nats"`
}

// NATSSettings configures JetStream task notifications.
type NATSSettings struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	URL           string `mapstructure:"url" yaml:"url" json:"url"`
	Stream        string `mapstructure:"stream" yaml:"stream" json:"stream"`
	SubjectPrefix string `mapstructure:"subjectprefix" yaml:"subjectprefix" json:"subjectPrefix"`
}

// EventsSettings configures entity change events.
type EventsSettings struct {
	BufferSize int          `mapstructure:"buffersize" yaml:"buffersize" json:"bufferSize"`
	MQTT       MQTTSettings `mapstructure:"mqtt" yaml:"mqtt" json:"mqtt"`
}

// MQTTSettings configures the MQTT forwarder.
type MQTTSettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker" json:"broker"`
	ClientID    string `mapstructure:"clientid" yaml:"clientid" json:"clientId"`
	Username    string `mapstructure:"username" yaml:"username" json:"username"`
	Password    string `mapstructure:"password" yaml:"password" json:"-"`
	TopicPrefix string `mapstructure:"topicprefix" yaml:"topicprefix" json:"topicPrefix"`
}

// LoggingSettings configures log output.
type LoggingSettings struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	FilePath   string `mapstructure:"filepath" yaml:"filepath" json:"filePath"`
	MaxSizeMB  int    `mapstructure:"maxsizemb" yaml:"maxsizemb" json:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxbackups" yaml:"maxbackups" json:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxagedays" yaml:"maxagedays" json:"maxAgeDays"`
	Timezone   string `mapstructure:"timezone" yaml:"timezone" json:"timezone"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn" json:"-"`
	Environment string `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// DefaultMinimumOnboardingStartTime is 2020-01-01T00:00:00Z in epoch millis.
var DefaultMinimumOnboardingStartTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdowntimeout", "10s")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "sentinel.db")

	v.SetDefault("lifecycle.minimumonboardingstarttime", DefaultMinimumOnboardingStartTime)
	v.SetDefault("lifecycle.defaultcron", "0 * * * * *")
	v.SetDefault("lifecycle.cronmaxtriggersperminute", 6)
	v.SetDefault("lifecycle.endtimeclockmargin", "0s")
	v.SetDefault("lifecycle.cronsyncinterval", "1m")

	v.SetDefault("authz.mode", "enforce")
	v.SetDefault("authz.cachettl", "1m")

	v.SetDefault("insights.timeout", "10s")
	v.SetDefault("insights.cachettl", "5m")

	v.SetDefault("scheduler.nats.stream", "SENTINEL_TASKS")
	v.SetDefault("scheduler.nats.subjectprefix", "sentinel.tasks")

	v.SetDefault("events.buffersize", 256)
	v.SetDefault("events.mqtt.clientid", "sentinel")
	v.SetDefault("events.mqtt.topicprefix", "sentinel/entities")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.maxsizemb", 100)
	v.SetDefault("logging.maxbackups", 5)
	v.SetDefault("logging.maxagedays", 30)

	v.SetDefault("sentry.environment", "production")
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Context("path", path).
				Build()
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "decode_config").
			Build()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	switch s.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return invalidSetting("database.type", s.Database.Type)
	}
	if s.Database.Type != "sqlite" && s.Database.DSN == "" {
		return invalidSetting("database.dsn", "")
	}
	switch s.Authz.Mode {
	case "enforce", "shadow", "disabled":
	default:
		return invalidSetting("authz.mode", s.Authz.Mode)
	}
	if s.Lifecycle.CronMaxTriggersPerMinute < 1 {
		return invalidSetting("lifecycle.cronmaxtriggersperminute", s.Lifecycle.CronMaxTriggersPerMinute)
	}
	if s.Lifecycle.EndTimeClockMargin < 0 {
		return invalidSetting("lifecycle.endtimeclockmargin", s.Lifecycle.EndTimeClockMargin)
	}
	if s.Lifecycle.CronSyncInterval <= 0 {
		return invalidSetting("lifecycle.cronsyncinterval", s.Lifecycle.CronSyncInterval)
	}
	return nil
}

func invalidSetting(key string, value any) error {
	return errors.Newf("invalid configuration value for %s", key).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("key", key).
		Context("value", value).
		Build()
}

// Location resolves the configured logging timezone, falling back to local.
func (l LoggingSettings) Location() *time.Location {
	if l.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var current atomic.Pointer[Settings]

// SetSettings installs s as the process-wide settings.
func SetSettings(s *Settings) {
	current.Store(s)
}

// GetSettings returns the process-wide settings, or nil before SetSettings.
func GetSettings() *Settings {
	return current.Load()
}
