package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel   int       `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat  string    `env:"LOG_FORMAT" envDefault:"text"`
	BcryptCost int       `env:"BCRYPT_COST" envDefault:"12"`
	HTTP       HTTP      `envPrefix:"HTTP_"`
	Token      Token     `envPrefix:"TOKEN_"`
	Redis      Redis     `envPrefix:"REDIS_"`
	RateLimit  RateLimit `envPrefix:"RATE_LIMIT_"`
	Storage    Storage   `envPrefix:"STORAGE_"`
	Category   Category  `envPrefix:"CATEGORY_"`
	NLP        Upstream  `envPrefix:"NLP_"`
	Speech     Upstream  `envPrefix:"SPEECH_"`
	Backup     Backup    `envPrefix:"BACKUP_"`
	MinIO      MinIO     `envPrefix:"MINIO_"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Address            string        `env:"ADDRESS" envDefault:":8080"`
	EnableHTTPS        bool          `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string        `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string        `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	ReadHeaderTimeout  time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout        time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxAudioBytes      int64         `env:"MAX_AUDIO_BYTES" envDefault:"26214400"`
}

// Token contains session token parameters. Secret has no default.
type Token struct {
	Secret        string        `env:"SECRET,required,notEmpty"`
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	Revocation    string        `env:"REVOCATION" envDefault:"memory"`
}

// Redis contains redis connection parameters for the revocation list.
type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// RateLimit contains admission control parameters.
type RateLimit struct {
	RPS          float64       `env:"RPS" envDefault:"5"`
	Burst        int           `env:"BURST" envDefault:"10"`
	PublicRPS    float64       `env:"PUBLIC_RPS" envDefault:"1"`
	PublicBurst  int           `env:"PUBLIC_BURST" envDefault:"5"`
	Concurrency  int           `env:"CONCURRENCY" envDefault:"4"`
	QueueTimeout time.Duration `env:"QUEUE_TIMEOUT" envDefault:"2s"`
	IdleTTL      time.Duration `env:"IDLE_TTL" envDefault:"10m"`
}

// Storage contains file storage parameters.
type Storage struct {
	Root              string        `env:"ROOT" envDefault:"./data"`
	BackupGenerations int           `env:"BACKUP_GENERATIONS" envDefault:"3"`
	WriteRetries      uint64        `env:"WRITE_RETRIES" envDefault:"3"`
	RetryBackoff      time.Duration `env:"RETRY_BACKOFF" envDefault:"10ms"`
}

// Category contains the category policy.
type Category struct {
	Mode     string   `env:"MODE" envDefault:"strict"`
	Known    []string `env:"KNOWN" envSeparator:","`
	Fallback string   `env:"FALLBACK" envDefault:"Personal"`
}

// Upstream describes an OpenAI-compatible collaborator. An empty BaseURL
// disables it.
type Upstream struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Backup contains snapshot backup parameters.
type Backup struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Schedule string `env:"SCHEDULE" envDefault:"@daily"`
	Dir      string `env:"DIR" envDefault:"./backups"`
}

// MinIO contains object storage parameters. When enabled, backups go to the
// bucket instead of Backup.Dir.
type MinIO struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"vibetrack-backups"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Token.Secret) < 16 {
		errs = append(errs, errors.New("TOKEN_SECRET must be at least 16 bytes"))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	switch c.Token.Revocation {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("TOKEN_REVOCATION must be memory or redis, got %q", c.Token.Revocation))
	}
	switch c.Category.Mode {
	case "strict", "extensible":
	default:
		errs = append(errs, fmt.Errorf("CATEGORY_MODE must be strict or extensible, got %q", c.Category.Mode))
	}
	if c.Storage.BackupGenerations < 1 {
		errs = append(errs, errors.New("STORAGE_BACKUP_GENERATIONS must be at least 1"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.PublicRPS <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_PUBLIC_RPS must be positive"))
	}
	if c.MinIO.Enabled && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENABLED is set"))
	}

	return errors.Join(errs...)
}
