// Package config loads the transcriber configuration from a YAML file and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type WorkflowConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

type SQLiteConfig struct {
	// Path of the database file, empty for an in-memory database
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type BackendConfig struct {
	// Type is one of memory, sqlite, mysql, redis
	Type string `yaml:"type"`

	WorkflowLockTimeout time.Duration `yaml:"workflow_lock_timeout"`
	ActivityLockTimeout time.Duration `yaml:"activity_lock_timeout"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SpeechConfig struct {
	// Provider is speech for the Azure Speech-to-Text service or fake for an in-process provider
	Provider string `yaml:"provider"`

	Endpoint    string        `yaml:"endpoint"`
	Key         string        `yaml:"key"`
	Locale      string        `yaml:"locale"`
	DisplayName string        `yaml:"display_name"`
	Timeout     time.Duration `yaml:"timeout"`

	// FakePolls is the number of polls the fake provider reports a job as running
	FakePolls int `yaml:"fake_polls"`
}

type SinkConfig struct {
	// Type is one of log, memory, redis. The redis sink uses the redis backend connection settings.
	Type    string `yaml:"type"`
	Channel string `yaml:"channel"`
}

type WorkerConfig struct {
	WorkflowPollers          int           `yaml:"workflow_pollers"`
	ActivityPollers          int           `yaml:"activity_pollers"`
	MaxParallelWorkflowTasks int           `yaml:"max_parallel_workflow_tasks"`
	MaxParallelActivityTasks int           `yaml:"max_parallel_activity_tasks"`
	PollingInterval          time.Duration `yaml:"polling_interval"`
	HistoryCacheSize         int           `yaml:"history_cache_size"`
}

type TracingConfig struct {
	// Exporter is one of none, stdout, otlp
	Exporter string `yaml:"exporter"`

	// Endpoint of the OTLP HTTP collector, host:port
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Workflow WorkflowConfig `yaml:"workflow"`
	Backend  BackendConfig  `yaml:"backend"`
	Speech   SpeechConfig   `yaml:"speech"`
	Sink     SinkConfig     `yaml:"sink"`
	Worker   WorkerConfig   `yaml:"worker"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			PollInterval:  5 * time.Second,
			Timeout:       2 * time.Minute,
			RetryAttempts: 3,
		},
		Backend: BackendConfig{
			Type:                "sqlite",
			WorkflowLockTimeout: time.Minute,
			ActivityLockTimeout: 2 * time.Minute,
			SQLite: SQLiteConfig{
				Path: "transcribe.sqlite",
			},
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Database: "transcribe",
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "transcribe:",
			},
		},
		Speech: SpeechConfig{
			Provider: "speech",
			Locale:   "en-US",
			Timeout:  30 * time.Second,
		},
		Sink: SinkConfig{
			Type:    "log",
			Channel: "transcriptions",
		},
		Worker: WorkerConfig{
			WorkflowPollers:  2,
			ActivityPollers:  2,
			PollingInterval:  200 * time.Millisecond,
			HistoryCacheSize: 128,
		},
		Tracing: TracingConfig{
			Exporter: "none",
			Endpoint: "localhost:4318",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the configuration file at path on top of the defaults and applies environment
// overrides. An empty path only applies the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

const envPrefix = "TRANSCRIBE_"

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"BACKEND":          &c.Backend.Type,
		"SQLITE_PATH":      &c.Backend.SQLite.Path,
		"MYSQL_HOST":       &c.Backend.MySQL.Host,
		"MYSQL_USER":       &c.Backend.MySQL.User,
		"MYSQL_PASSWORD":   &c.Backend.MySQL.Password,
		"MYSQL_DATABASE":   &c.Backend.MySQL.Database,
		"REDIS_ADDR":       &c.Backend.Redis.Addr,
		"REDIS_USERNAME":   &c.Backend.Redis.Username,
		"REDIS_PASSWORD":   &c.Backend.Redis.Password,
		"REDIS_KEY_PREFIX": &c.Backend.Redis.KeyPrefix,
		"SPEECH_PROVIDER":  &c.Speech.Provider,
		"SPEECH_ENDPOINT":  &c.Speech.Endpoint,
		"SPEECH_KEY":       &c.Speech.Key,
		"SPEECH_LOCALE":    &c.Speech.Locale,
		"SINK":             &c.Sink.Type,
		"TRACING_EXPORTER": &c.Tracing.Exporter,
		"OTLP_ENDPOINT":    &c.Tracing.Endpoint,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
		"HTTP_ADDR":        &c.HTTP.Addr,
	}

	for key, target := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"MYSQL_PORT":     &c.Backend.MySQL.Port,
		"REDIS_DB":       &c.Backend.Redis.DB,
		"RETRY_ATTEMPTS": &c.Workflow.RetryAttempts,
	}

	for key, target := range ints {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}

			*target = n
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL": &c.Workflow.PollInterval,
		"TIMEOUT":       &c.Workflow.Timeout,
	}

	for key, target := range durations {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}

			*target = d
		}
	}

	return nil
}

// Validate checks that the configuration can be used to build the backend and the activities.
func (c *Config) Validate() error {
	var errs []error

	if c.Workflow.PollInterval <= 0 {
		errs = append(errs, errors.New("workflow.poll_interval must be positive"))
	}

	if c.Workflow.Timeout <= 0 {
		errs = append(errs, errors.New("workflow.timeout must be positive"))
	}

	if c.Backend.WorkflowLockTimeout <= 0 || c.Backend.ActivityLockTimeout <= 0 {
		errs = append(errs, errors.New("backend lock timeouts must be positive"))
	}

	if c.Worker.PollingInterval <= 0 {
		errs = append(errs, errors.New("worker.polling_interval must be positive"))
	}

	switch c.Backend.Type {
	case "memory", "sqlite":
	case "mysql":
		if c.Backend.MySQL.Host == "" || c.Backend.MySQL.Database == "" {
			errs = append(errs, errors.New("backend.mysql needs host and database"))
		}
	case "redis":
		if c.Backend.Redis.Addr == "" {
			errs = append(errs, errors.New("backend.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend type %q", c.Backend.Type))
	}

	switch c.Speech.Provider {
	case "fake":
	case "speech":
		if c.Speech.Endpoint == "" {
			errs = append(errs, errors.New("speech.endpoint is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown speech provider %q", c.Speech.Provider))
	}

	switch c.Sink.Type {
	case "log", "memory":
	case "redis":
		if c.Backend.Redis.Addr == "" {
			errs = append(errs, errors.New("redis sink needs backend.redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink type %q", c.Sink.Type))
	}

	switch c.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}

	return level, nil
}

// Logger creates the process logger
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := l.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
