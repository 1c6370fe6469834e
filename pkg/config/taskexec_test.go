package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Pool.Workers != Default().Pool.Workers {
		t.Errorf("Pool.Workers = %d, want default", cfg.Pool.Workers)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "taskexec.yaml", `
log:
  level: debug
pool:
  name: jobs
  workers: 4
  queue_capacity: 64
  policy: discard-oldest
  shutdown_timeout: 5s
admin:
  enabled: false
`)
	t.Setenv("TASKEXEC_POOL_QUEUE_CAPACITY", "128")
	t.Setenv("TASKEXEC_LOAD_RATE", "250.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Pool.Name != "jobs" || cfg.Pool.Workers != 4 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Pool.QueueCapacity != 128 {
		t.Errorf("Pool.QueueCapacity = %d, want 128 from env", cfg.Pool.QueueCapacity)
	}
	if cfg.Pool.ShutdownTimeout.Std() != 5*time.Second {
		t.Errorf("Pool.ShutdownTimeout = %v, want 5s", cfg.Pool.ShutdownTimeout)
	}
	if cfg.Load.Rate != 250.5 {
		t.Errorf("Load.Rate = %v, want 250.5", cfg.Load.Rate)
	}
	if cfg.Admin.Enabled {
		t.Error("Admin.Enabled = true, want false from file")
	}
	// Untouched sections keep defaults.
	if cfg.Tracing.Exporter != "none" {
		t.Errorf("Tracing.Exporter = %q, want none", cfg.Tracing.Exporter)
	}
}

func TestFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*File)
		wantErr string
	}{
		{"zero workers", func(f *File) { f.Pool.Workers = 0 }, "pool.workers"},
		{"zero capacity", func(f *File) { f.Pool.QueueCapacity = 0 }, "pool.queue_capacity"},
		{"bad policy", func(f *File) { f.Pool.Policy = "lifo" }, "pool.policy"},
		{"bad level", func(f *File) { f.Log.Level = "trace" }, "log.level"},
		{"bad exporter", func(f *File) { f.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"zipkin without url", func(f *File) {
			f.Tracing.Exporter = "zipkin"
			f.Tracing.ZipkinURL = ""
		}, "tracing.zipkin_url"},
		{"intake without subject", func(f *File) {
			f.Intake.Enabled = true
			f.Intake.Subject = ""
		}, "intake.subject"},
		{"admin without addr", func(f *File) { f.Admin.Addr = "" }, "admin.addr"},
		{"failure ratio", func(f *File) { f.Load.FailureRatio = 2 }, "load.failure_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("250ms")); err != nil {
		t.Fatal(err)
	}
	if d.Std() != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", d)
	}
	text, _ := d.MarshalText()
	if string(text) != "250ms" {
		t.Errorf("MarshalText() = %s, want 250ms", text)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText() should reject garbage")
	}
}
