package config

import (
	"fmt"
	"time"

	"github.com/fluxorio/taskexec/pkg/core/concurrency"
)

// EnvPrefix prefixes every environment override, e.g. TASKEXEC_POOL_WORKERS.
const EnvPrefix = "TASKEXEC"

// Duration is a time.Duration written as "250ms" or "5s" in YAML, JSON
// and environment variables.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// File is the taskexec configuration file.
type File struct {
	Log     LogConfig     `yaml:"log" json:"log"`
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Admin   AdminConfig   `yaml:"admin" json:"admin"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	Intake  IntakeConfig  `yaml:"intake" json:"intake"`
	Load    LoadConfig    `yaml:"load" json:"load"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type PoolConfig struct {
	Name            string   `yaml:"name" json:"name"`
	Workers         int      `yaml:"workers" json:"workers"`
	QueueCapacity   int      `yaml:"queue_capacity" json:"queue_capacity"`
	Policy          string   `yaml:"policy" json:"policy"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

type TracingConfig struct {
	Exporter    string  `yaml:"exporter" json:"exporter"` // none, stdout or zipkin
	ZipkinURL   string  `yaml:"zipkin_url" json:"zipkin_url"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// IntakeConfig configures the NATS subscriber that feeds the pool.
type IntakeConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url" json:"url"`
	Subject string `yaml:"subject" json:"subject"`
	Queue   string `yaml:"queue" json:"queue"`
}

// LoadConfig drives the synthetic load generator. A zero rate disables it.
type LoadConfig struct {
	Rate         float64  `yaml:"rate" json:"rate"`
	Burst        int      `yaml:"burst" json:"burst"`
	TaskDuration Duration `yaml:"task_duration" json:"task_duration"`
	FailureRatio float64  `yaml:"failure_ratio" json:"failure_ratio"`
}

// Default returns a configuration usable without a file.
func Default() *File {
	return &File{
		Log: LogConfig{Level: "info"},
		Pool: PoolConfig{
			Name:            "default",
			Workers:         8,
			QueueCapacity:   1024,
			Policy:          "abort",
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ZipkinURL:   "http://localhost:9411/api/v2/spans",
			ServiceName: "taskexec",
			SampleRatio: 1,
		},
		Intake: IntakeConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "taskexec.tasks",
			Queue:   "taskexec",
		},
		Load: LoadConfig{
			Burst:        1,
			TaskDuration: Duration(10 * time.Millisecond),
		},
	}
}

// Load builds the configuration from defaults, the optional file at path
// and TASKEXEC_* environment variables, then validates it.
func Load(path string) (*File, error) {
	cfg := Default()
	if err := LoadWithEnv(path, EnvPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (f *File) Validate() error {
	return Validate(f,
		OneOf("log.level", "debug", "info", "warn", "warning", "error"),
		Range("pool.workers", 1, 1<<16),
		Range("pool.queue_capacity", 1, 1<<24),
		OneOf("pool.policy", concurrency.PolicyNames()...),
		Range("pool.shutdown_timeout", 0, float64(24*time.Hour)),
		When(func(c interface{}) bool { return c.(*File).Admin.Enabled }, Required("admin.addr")),
		OneOf("tracing.exporter", "none", "stdout", "zipkin"),
		When(func(c interface{}) bool { return c.(*File).Tracing.Exporter == "zipkin" }, Required("tracing.zipkin_url")),
		Range("tracing.sample_ratio", 0, 1),
		When(func(c interface{}) bool { return c.(*File).Intake.Enabled }, Required("intake.url", "intake.subject")),
		Range("load.rate", 0, 1e6),
		Range("load.failure_ratio", 0, 1),
	)
}
