package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	Storage  StorageConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Journal  JournalConfig
	Jobs     JobsConfig
	GinMode  string `envconfig:"GIN_MODE" default:"debug"`
}

type DatabaseConfig struct {
	Host         string `envconfig:"DB_HOST" default:"localhost"`
	Port         string `envconfig:"DB_PORT" default:"5432"`
	User         string `envconfig:"DB_USER" default:"postgres"`
	Password     string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME" default:"journal_db"`
	SSLMode      string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
}

type JWTConfig struct {
	Secret string        `envconfig:"JWT_SECRET" default:"change-me"`
	Expiry time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`
	Issuer string        `envconfig:"JWT_ISSUER" default:"journal-backend"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	Port     string `envconfig:"SMTP_PORT" default:"587"`
	Email    string `envconfig:"SMTP_EMAIL"`
	Password string `envconfig:"SMTP_PASSWORD"`
	FromName string `envconfig:"SMTP_FROM_NAME" default:"Journal Editorial Office"`
}

type StorageConfig struct {
	// Backend is "s3" or "local".
	Backend   string `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalDir  string `envconfig:"STORAGE_LOCAL_DIR" default:"./uploads"`
	PublicURL string `envconfig:"STORAGE_PUBLIC_URL" default:"http://localhost:8080/uploads"`
	S3URL     string `envconfig:"S3_URL"`
	S3Region  string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket  string `envconfig:"S3_BUCKET" default:"journal-files"`
	S3Key     string `envconfig:"S3_KEY"`
	S3Secret  string `envconfig:"S3_SECRET"`
	MaxSizeMB int64  `envconfig:"UPLOAD_MAX_SIZE_MB" default:"20"`
}

type HTTPConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	CORSOrigins    string        `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	AuthRateLimit  float64       `envconfig:"AUTH_RATE_LIMIT" default:"5"`
	AuthRateBurst  int           `envconfig:"AUTH_RATE_BURST" default:"10"`
	FrontendURL    string        `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	RequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30s"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"auto"`
}

type JournalConfig struct {
	Name         string  `envconfig:"JOURNAL_NAME" default:"Journal Portal"`
	DefaultAPC   float64 `envconfig:"JOURNAL_DEFAULT_APC" default:"0"`
	Currency     string  `envconfig:"JOURNAL_CURRENCY" default:"USD"`
	DOIPrefix    string  `envconfig:"JOURNAL_DOI_PREFIX"`
	FounderEmail string  `envconfig:"JOURNAL_FOUNDER_EMAIL"`
}

type JobsConfig struct {
	Enabled          bool   `envconfig:"JOBS_ENABLED" default:"true"`
	ReminderSchedule string `envconfig:"JOBS_REMINDER_SCHEDULE" default:"0 8 * * *"`
	LockPath         string `envconfig:"JOBS_LOCK_PATH" default:"/tmp/journal-reminders.lock"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv processes the environment without touching .env files.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && (c.Storage.S3Key == "" || c.Storage.S3Secret == "") {
		return fmt.Errorf("config: s3 backend needs S3_KEY and S3_SECRET")
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("config: JWT_EXPIRY must be positive")
	}
	return nil
}

func (c *Config) GetDatabaseURL() string {
	return c.buildDatabaseURL()
}

func (c *Config) buildDatabaseURL() string {
	var sb strings.Builder

	sb.WriteString("postgres://")
	sb.WriteString(c.Database.User)
	if c.Database.Password != "" {
		sb.WriteString(":")
		sb.WriteString(c.Database.Password)
	}
	sb.WriteString("@")
	sb.WriteString(c.Database.Host)
	sb.WriteString(":")
	sb.WriteString(c.Database.Port)
	sb.WriteString("/")
	sb.WriteString(c.Database.DBName)

	if c.Database.SSLMode != "" {
		sb.WriteString("?sslmode=")
		sb.WriteString(c.Database.SSLMode)
	}

	return sb.String()
}

func (c *Config) GetCORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.HTTP.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Email != "" && c.SMTP.Password != ""
}
