package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/pkg/utils/secrets"
)

const EnvPrefix = "TRACKER"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Board     BoardConfig     `mapstructure:"board"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Retention RetentionConfig `mapstructure:"retention"`
	Features  FeaturesConfig  `mapstructure:"features"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig.URL selects the backend by scheme: postgres://, sqlite://
// or mongodb://.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Name            string        `mapstructure:"name"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	QueueKey string        `mapstructure:"queue_key"`
	PollWait time.Duration `mapstructure:"poll_wait"`
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type StorageConfig struct {
	Root              string   `mapstructure:"root"`
	UploadDir         string   `mapstructure:"upload_dir"`
	OutputDir         string   `mapstructure:"output_dir"`
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
}

type RegistryConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	LookupPath    string        `mapstructure:"lookup_path"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait  time.Duration `mapstructure:"retry_max_wait"`
	UserAgent     string        `mapstructure:"user_agent"`
	StatusHeading string        `mapstructure:"status_heading"`
}

type BoardConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	APIURL   string        `mapstructure:"api_url"`
	APIKey   string        `mapstructure:"api_key"`
	BoardID  string        `mapstructure:"board_id"`
	ColumnID string        `mapstructure:"column_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

type RetentionConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type FeaturesConfig struct {
	// SecretKey opens "enc:" values in database.url, board.api_key and
	// redis.password.
	SecretKey            string   `mapstructure:"secret_key"`
	RequestIDHeader      string   `mapstructure:"request_id_header"`
	EnableRequestLogging bool     `mapstructure:"enable_request_logging"`
	AllowedOrigins       []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.name", "rrf_status_tracker")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "statustracker:jobs")
	v.SetDefault("redis.poll_wait", 2*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})

	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "downloads")
	v.SetDefault("storage.max_upload_bytes", 16*1024*1024)
	v.SetDefault("storage.allowed_extensions", []string{".xlsx", ".xls"})

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.request_delay", time.Second)

	v.SetDefault("registry.base_url", "https://rct.doj.ca.gov")
	v.SetDefault("registry.lookup_path", "/Verification/Web/Search.aspx")
	v.SetDefault("registry.timeout", 60*time.Second)
	v.SetDefault("registry.retry_count", 3)
	v.SetDefault("registry.retry_wait", 500*time.Millisecond)
	v.SetDefault("registry.retry_max_wait", 2*time.Second)
	v.SetDefault("registry.user_agent", "statustracker/1.0")
	v.SetDefault("registry.status_heading", "Charity Registration")

	v.SetDefault("board.enabled", false)
	v.SetDefault("board.api_url", "https://api.monday.com/v2")
	v.SetDefault("board.api_key", "")
	v.SetDefault("board.board_id", "")
	v.SetDefault("board.column_id", "project_status")
	v.SetDefault("board.timeout", 30*time.Second)

	v.SetDefault("sync.schedule", "@every 15m")
	v.SetDefault("sync.batch_size", 100)

	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("retention.max_age", 30*24*time.Hour)

	v.SetDefault("features.secret_key", "")
	v.SetDefault("features.request_id_header", "X-Request-ID")
	v.SetDefault("features.enable_request_logging", true)
	v.SetDefault("features.allowed_origins", []string{"http://localhost:3000"})
}

// Load reads the optional YAML file at path, a .env file in the working
// directory and TRACKER_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// database.url has no default, so AutomaticEnv alone would not surface it to Unmarshal.
	if err := v.BindEnv("database.url"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.openSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Database.URL) == "" {
		problems = append(problems, "database.url (TRACKER_DATABASE_URL) is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Storage.Root == "" {
		problems = append(problems, "storage.root is required")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		problems = append(problems, "storage.max_upload_bytes must be positive")
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		problems = append(problems, "storage.allowed_extensions must not be empty")
	}
	for _, ext := range c.Storage.AllowedExtensions {
		if _, ok := domain.UploadSignature(ext); !ok {
			problems = append(problems, fmt.Sprintf("storage.allowed_extensions: unsupported extension %q", ext))
		}
	}
	if c.Worker.Count <= 0 {
		problems = append(problems, "worker.count must be positive")
	}
	if c.Worker.RequestDelay < 0 {
		problems = append(problems, "worker.request_delay must not be negative")
	}
	if c.Registry.BaseURL == "" {
		problems = append(problems, "registry.base_url is required")
	}
	if c.Registry.Timeout <= 0 {
		problems = append(problems, "registry.timeout must be positive")
	}
	if c.Retention.MaxAge <= 0 {
		problems = append(problems, "retention.max_age must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		problems = append(problems, "sync.batch_size must be positive")
	}
	if c.Board.Enabled {
		if c.Board.APIKey == "" {
			problems = append(problems, "board.api_key (TRACKER_BOARD_API_KEY) is required when board sync is enabled")
		}
		if c.Board.BoardID == "" {
			problems = append(problems, "board.board_id is required when board sync is enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) openSecrets() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"database.url", &c.Database.URL},
		{"board.api_key", &c.Board.APIKey},
		{"redis.password", &c.Redis.Password},
	}
	for _, f := range fields {
		plain, err := secrets.Open(*f.value, c.Features.SecretKey)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.name, err)
		}
		*f.value = plain
	}
	return nil
}

func (s *StorageConfig) UploadPath() string {
	return joinUnderRoot(s.Root, s.UploadDir)
}

func (s *StorageConfig) OutputPath() string {
	return joinUnderRoot(s.Root, s.OutputDir)
}

func joinUnderRoot(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
