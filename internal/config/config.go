package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var (
	ErrMissingCredentials = errors.New("whatsapp credentials are not configured")
	ErrInvalidScheduler   = errors.New("invalid scheduler configuration")
)

var config *Config

// Config holds every value read from the environment. Nothing else in the
// service reads env, ini or any other config source directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=campaign_dispatcher"`
	AppDebug            bool   `env:"APP_DEBUG,default=true"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr    string `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerTimeout int    `env:"HTTP_SERVER_TIMEOUT_MS,default=5000"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE,default=campaign_dispatcher"`

	LogFile           string `env:"LOG_FILE"`
	LogFileMaxSizeMB  int    `env:"LOG_FILE_MAX_SIZE_MB,default=100"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS,default=7"`
	LogFileMaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS,default=30"`

	WhatsappApiUrl             string        `env:"WHATSAPP_API_URL,default=https://graph.facebook.com"`
	WhatsappApiVersion         string        `env:"WHATSAPP_API_VERSION,default=v22.0"`
	WhatsappPhoneNumberID      string        `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsappToken              string        `env:"WHATSAPP_TOKEN"`
	WhatsappTimeout            time.Duration `env:"WHATSAPP_TIMEOUT,default=15s"`
	WhatsappWebhookVerifyToken string        `env:"WHATSAPP_WEBHOOK_VERIFY_TOKEN"`
	WhatsappCBThreshold        int           `env:"WHATSAPP_CB_THRESHOLD,default=5"`
	WhatsappCBTimeout          time.Duration `env:"WHATSAPP_CB_TIMEOUT,default=1m"`

	MediaRoot string `env:"MEDIA_ROOT,default=."`

	SchedulerTickInterval     time.Duration `env:"SCHEDULER_TICK_INTERVAL,default=1m"`
	SchedulerSendDelay        time.Duration `env:"SCHEDULER_SEND_DELAY,default=5s"`
	SchedulerMaxPerDrain      int           `env:"SCHEDULER_MAX_PER_DRAIN,default=0"`
	SchedulerRegions          string        `env:"SCHEDULER_REGIONS"`
	SchedulerErrorNotifyUser  int64         `env:"SCHEDULER_ERROR_NOTIFY_USER_ID,default=1"`
	DeliveryMarkerTTL         time.Duration `env:"DELIVERY_MARKER_TTL,default=72h"`
	SchedulerShutdownDeadline time.Duration `env:"SCHEDULER_SHUTDOWN_DEADLINE,default=30s"`

	EventsStream  string `env:"EVENTS_STREAM,default=dispatch:events"`
	EventsMaxLen  int64  `env:"EVENTS_MAX_LEN,default=10000"`
	EventsWorkers int    `env:"EVENTS_WORKERS,default=4"`
	EventsBuffer  int    `env:"EVENTS_BUFFER,default=1024"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

// Set replaces the loaded configuration. Used by tests and tools that build
// a Config by hand.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// ValidateDispatcher checks the values the scheduler process cannot start
// without.
func (c *Config) ValidateDispatcher() error {
	if c.WhatsappToken == "" || c.WhatsappPhoneNumberID == "" {
		return errors.Wrap(ErrMissingCredentials, "WHATSAPP_TOKEN and WHATSAPP_PHONE_NUMBER_ID are required")
	}
	if c.WhatsappApiUrl == "" {
		return errors.Wrap(ErrMissingCredentials, "WHATSAPP_API_URL is required")
	}
	if c.SchedulerTickInterval <= 0 {
		return errors.Wrap(ErrInvalidScheduler, "SCHEDULER_TICK_INTERVAL must be positive")
	}
	if c.SchedulerSendDelay < 0 {
		return errors.Wrap(ErrInvalidScheduler, "SCHEDULER_SEND_DELAY must not be negative")
	}
	if c.SchedulerMaxPerDrain < 0 {
		return errors.Wrap(ErrInvalidScheduler, "SCHEDULER_MAX_PER_DRAIN must not be negative")
	}
	return nil
}
