package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log         LogConfig        `mapstructure:"log"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	MySQL       DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse  DatabaseConfig   `mapstructure:"clickhouse"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Dispatcher  DispatcherConfig `mapstructure:"dispatcher"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	SendGrid    SendGridConfig   `mapstructure:"sendgrid"`
	DocuSign    DocuSignConfig   `mapstructure:"docusign"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Attachments AttachmentConfig `mapstructure:"attachments"`
	Scheduler   SchedulerConfig  `mapstructure:"scheduler"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string    `mapstructure:"brokers"`
	GroupID        string      `mapstructure:"group_id"`
	MinBytes       int         `mapstructure:"min_bytes"`
	MaxBytes       int         `mapstructure:"max_bytes"`
	CommitInterval int         `mapstructure:"commit_interval_ms"`
	Topics         TopicConfig `mapstructure:"topics"`
	Relay          RelayConfig `mapstructure:"relay"`
}

type TopicConfig struct {
	Webhooks string `mapstructure:"webhooks"`
	Notify   string `mapstructure:"notify"`
}

type RelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type DispatcherConfig struct {
	WorkerCount      int              `mapstructure:"worker_count"`
	SendConcurrency  int              `mapstructure:"send_concurrency"`
	SMSPerSecond     float64          `mapstructure:"sms_per_second"`
	BatchSize        int              `mapstructure:"batch_size"`
	BatchWait        time.Duration    `mapstructure:"batch_wait"`
	MaxRetryAttempts MaxRetryAttempts `mapstructure:"max_retry_attempts"`
	Breaker          BreakerConfig    `mapstructure:"breaker"`
}

type MaxRetryAttempts struct {
	SMS   int `mapstructure:"sms"`
	Email int `mapstructure:"email"`
}

type RateLimitConfig struct {
	RPS        int `mapstructure:"rps"`
	WebhookRPS int `mapstructure:"webhook_rps"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type SendGridConfig struct {
	APIKey            string `mapstructure:"api_key"`
	DefaultSender     string `mapstructure:"default_sender"`
	DefaultSenderName string `mapstructure:"default_sender_name"`
}

type DocuSignConfig struct {
	AccountID      string        `mapstructure:"account_id"`
	IntegrationKey string        `mapstructure:"integration_key"`
	UserID         string        `mapstructure:"user_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	AuthServer     string        `mapstructure:"auth_server"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type AttachmentConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (STAFFHOOKS_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (STAFFHOOKS_SENDGRID_API_KEY -> sendgrid.api_key)
	v.SetEnvPrefix("STAFFHOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
