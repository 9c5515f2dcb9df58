package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nifastore/nifa/internal/backup"
	"github.com/nifastore/nifa/internal/push"
	"github.com/spf13/viper"
)

// Config holds all configuration values. Every key can be set in nifa.yaml
// or through an environment variable prefixed with NIFA_.
type Config struct {
	Port      string `mapstructure:"PORT"`
	DBPath    string `mapstructure:"DB_PATH"`
	BaseURL   string `mapstructure:"BASE_URL"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	CookieSecret        string `mapstructure:"COOKIE_SECRET"`
	CookieMaxAgeDays    int    `mapstructure:"COOKIE_MAX_AGE_DAYS"`
	CookieSecure        bool   `mapstructure:"COOKIE_SECURE"`
	CodeRequestsPerHour int    `mapstructure:"CODE_REQUESTS_PER_HOUR"`

	SMSAPIURL   string `mapstructure:"SMS_API_URL"`
	SMSAPIToken string `mapstructure:"SMS_API_TOKEN"`
	SMSSender   string `mapstructure:"SMS_SENDER"`

	// AdminPhones is a comma-separated list of phone numbers granted admin.
	AdminPhones string `mapstructure:"ADMIN_PHONES"`

	VAPIDPublicKey  string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `mapstructure:"VAPID_SUBSCRIBER"`

	BackupS3Endpoint    string `mapstructure:"BACKUP_S3_ENDPOINT"`
	BackupS3Bucket      string `mapstructure:"BACKUP_S3_BUCKET"`
	BackupS3Region      string `mapstructure:"BACKUP_S3_REGION"`
	BackupS3AccessKey   string `mapstructure:"BACKUP_S3_ACCESS_KEY"`
	BackupS3SecretKey   string `mapstructure:"BACKUP_S3_SECRET_KEY"`
	BackupPassphrase    string `mapstructure:"BACKUP_PASSPHRASE"`
	BackupIntervalHours int    `mapstructure:"BACKUP_INTERVAL_HOURS"`
	BackupRetentionDays int    `mapstructure:"BACKUP_RETENTION_DAYS"`
}

var keys = []string{
	"PORT", "DB_PATH", "BASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	"COOKIE_SECRET", "COOKIE_MAX_AGE_DAYS", "COOKIE_SECURE", "CODE_REQUESTS_PER_HOUR",
	"SMS_API_URL", "SMS_API_TOKEN", "SMS_SENDER", "ADMIN_PHONES",
	"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBSCRIBER",
	"BACKUP_S3_ENDPOINT", "BACKUP_S3_BUCKET", "BACKUP_S3_REGION", "BACKUP_S3_ACCESS_KEY",
	"BACKUP_S3_SECRET_KEY", "BACKUP_PASSPHRASE", "BACKUP_INTERVAL_HOURS", "BACKUP_RETENTION_DAYS",
}

// Load reads nifa.yaml from the working directory or ./config when present,
// then overlays NIFA_* environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("nifa")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("NIFA")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "nifa.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("COOKIE_MAX_AGE_DAYS", 30)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CODE_REQUESTS_PER_HOUR", 5)
	v.SetDefault("SMS_SENDER", "NIFA")
	v.SetDefault("VAPID_SUBSCRIBER", "mailto:contato@nifa.store")
	v.SetDefault("BACKUP_S3_REGION", "us-east-1")
	v.SetDefault("BACKUP_INTERVAL_HOURS", 24)
	v.SetDefault("BACKUP_RETENTION_DAYS", 30)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	return cfg, nil
}

// CookieMaxAge returns the verification cookie lifetime.
func (c Config) CookieMaxAge() time.Duration {
	return time.Duration(c.CookieMaxAgeDays) * 24 * time.Hour
}

// BackupConfig returns the catalog backup settings.
func (c Config) BackupConfig() backup.Config {
	return backup.Config{
		Endpoint:   c.BackupS3Endpoint,
		Bucket:     c.BackupS3Bucket,
		Region:     c.BackupS3Region,
		AccessKey:  c.BackupS3AccessKey,
		SecretKey:  c.BackupS3SecretKey,
		Passphrase: c.BackupPassphrase,
		Interval:   time.Duration(c.BackupIntervalHours) * time.Hour,
		Retention:  time.Duration(c.BackupRetentionDays) * 24 * time.Hour,
	}
}

// PushConfig returns the Web Push settings.
func (c Config) PushConfig() push.Config {
	return push.Config{
		VAPIDPublicKey:  c.VAPIDPublicKey,
		VAPIDPrivateKey: c.VAPIDPrivateKey,
		Subscriber:      c.VAPIDSubscriber,
	}
}

// AdminPhoneList splits AdminPhones into trimmed, non-empty entries.
func (c Config) AdminPhoneList() []string {
	var phones []string
	for _, p := range strings.Split(c.AdminPhones, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phones = append(phones, p)
		}
	}
	return phones
}
