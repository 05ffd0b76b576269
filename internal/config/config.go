package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	NATS struct {
		URL                 string             `mapstructure:"url"`
		Ingest              ConsumerNatsConfig `mapstructure:"ingest"`
		DLQStream           string             `mapstructure:"dlqStream"`           // Name of the Dead Letter Queue stream
		DLQSubject          string             `mapstructure:"dlqSubject"`          // Base subject for DLQ messages (e.g., v1.dlq)
		DLQWorkers          int                `mapstructure:"dlqWorkers"`          // Number of concurrent DLQ processing workers
		DLQBaseDelayMinutes int                `mapstructure:"dlqBaseDelayMinutes"` // Base delay in minutes for exponential backoff
		DLQMaxDelayMinutes  int                `mapstructure:"dlqMaxDelayMinutes"`  // Max delay in minutes for exponential backoff
		DLQMaxAgeDays       int                `mapstructure:"dlqMaxAgeDays"`       // Retention period for DLQ messages (days)
		DLQMaxDeliver       int                `mapstructure:"dlqMaxDeliver"`       // Max redelivery attempts for DLQ consumer
		DLQAckWait          time.Duration      `mapstructure:"dlqAckWait"`          // Ack wait timeout for DLQ consumer
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Organization struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"organization"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	Webhook struct {
		VerifyToken string `mapstructure:"verifyToken"` // Handshake secret for the chat provider webhook
	} `mapstructure:"webhook"`
	ChatProvider  ChatProviderConfig  `mapstructure:"chatProvider"`
	EmailProvider EmailProviderConfig `mapstructure:"emailProvider"`
	Dispatch struct {
		SendInterval  time.Duration `mapstructure:"sendInterval"`  // Mandatory gap between segment sends
		SweepSchedule string        `mapstructure:"sweepSchedule"` // Cron spec for the scheduled-campaign sweeper
	} `mapstructure:"dispatch"`
	WorkerPools struct {
		Automation AutomationWorkerPoolConfig `mapstructure:"automation"`
	} `mapstructure:"workerPools"`
}

// ChatProviderConfig holds connection settings for the chat send gateway
type ChatProviderConfig struct {
	BaseURL       string        `mapstructure:"baseURL"`
	AccessToken   string        `mapstructure:"accessToken"`
	PhoneNumberID string        `mapstructure:"phoneNumberID"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// EmailProviderConfig holds connection settings for the email provider
type EmailProviderConfig struct {
	BaseURL     string        `mapstructure:"baseURL"`
	APIKey      string        `mapstructure:"apiKey"`
	FromAddress string        `mapstructure:"fromAddress"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AutomationWorkerPoolConfig holds configuration for the automation worker pool
type AutomationWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in days
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`   // Max delivery attempts before DLQ
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	// Ingest consumer defaults
	v.SetDefault("nats.ingest.stream", "crm_inbound")
	v.SetDefault("nats.ingest.consumer", "crm_pipeline")
	v.SetDefault("nats.ingest.group", "crm_pipeline_group")
	v.SetDefault("nats.ingest.subjectList", []string{"v1.inbound.>"})
	v.SetDefault("nats.ingest.maxAge", int64(7))
	v.SetDefault("nats.ingest.maxDeliver", 5)
	v.SetDefault("nats.ingest.nakBaseDelay", 2*time.Second)
	v.SetDefault("nats.ingest.nakMaxDelay", 30*time.Second)

	// DLQ worker defaults
	v.SetDefault("nats.dlqStream", "crm_dlq")
	v.SetDefault("nats.dlqSubject", "v1.dlq")
	v.SetDefault("nats.dlqWorkers", 4)
	v.SetDefault("nats.dlqBaseDelayMinutes", 1)
	v.SetDefault("nats.dlqMaxDelayMinutes", 15)
	v.SetDefault("nats.dlqMaxAgeDays", 7)
	v.SetDefault("nats.dlqMaxDeliver", 5)
	v.SetDefault("nats.dlqAckWait", 30*time.Second)

	// Transport defaults
	v.SetDefault("chatProvider.timeout", 15*time.Second)
	v.SetDefault("emailProvider.timeout", 15*time.Second)

	// Dispatch defaults: one segment send every 5s, sweep every minute
	v.SetDefault("dispatch.sendInterval", 5*time.Second)
	v.SetDefault("dispatch.sweepSchedule", "* * * * *")

	// WorkerPools defaults
	v.SetDefault("workerPools.automation.poolSize", 8)
	v.SetDefault("workerPools.automation.queueSize", 4096)
	v.SetDefault("workerPools.automation.maxBlock", time.Second)
	v.SetDefault("workerPools.automation.expiryTime", time.Minute)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/crm-messaging-pipeline")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if org := os.Getenv("ORGANIZATION_ID"); org != "" {
		v.Set("organization.id", org)
	}
	if token := os.Getenv("WEBHOOK_VERIFY_TOKEN"); token != "" {
		v.Set("webhook.verifyToken", token)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
