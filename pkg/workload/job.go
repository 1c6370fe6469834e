// Package workload describes the synthetic jobs taskexec runs for load
// generation, benchmarks and NATS intake.
package workload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fluxorio/taskexec/pkg/core/concurrency"
)

// ErrJobFailed is returned by jobs asked to fail.
var ErrJobFailed = errors.New("job failed on request")

// Job is a unit of synthetic work. It sleeps for Duration (or until its
// context ends) and then fails or panics if asked to.
type Job struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Fail     bool          `json:"fail,omitempty"`
	Panic    bool          `json:"panic,omitempty"`
}

// Parse decodes a JSON job. An empty payload is a zero-duration job.
// Duration accepts either nanoseconds or a string such as "25ms".
func Parse(data []byte) (Job, error) {
	var raw struct {
		Name     string          `json:"name"`
		Duration json.RawMessage `json:"duration"`
		Fail     bool            `json:"fail"`
		Panic    bool            `json:"panic"`
	}
	if len(data) == 0 {
		return Job{}, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	job := Job{Name: raw.Name, Fail: raw.Fail, Panic: raw.Panic}
	if len(raw.Duration) > 0 {
		var s string
		if err := json.Unmarshal(raw.Duration, &s); err == nil {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Job{}, fmt.Errorf("decode job duration: %w", err)
			}
			job.Duration = d
		} else if err := json.Unmarshal(raw.Duration, &job.Duration); err != nil {
			return Job{}, fmt.Errorf("decode job duration: %w", err)
		}
	}
	if job.Duration < 0 {
		return Job{}, fmt.Errorf("job duration must not be negative, got %s", job.Duration)
	}
	return job, nil
}

// Run performs the job.
func (j Job) Run(ctx context.Context) error {
	if j.Duration > 0 {
		timer := time.NewTimer(j.Duration)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if j.Panic {
		panic(fmt.Sprintf("job %s panicked on request", j.Name))
	}
	if j.Fail {
		return fmt.Errorf("%s: %w", j.Name, ErrJobFailed)
	}
	return nil
}

// Task adapts the job to concurrency.Task.
func (j Job) Task() concurrency.Task {
	name := j.Name
	if name == "" {
		name = "job"
	}
	return concurrency.NewNamedTask(name, j.Run)
}

// Generator produces jobs with a fixed duration and a failure ratio.
type Generator struct {
	Prefix       string
	Duration     time.Duration
	FailureRatio float64

	rng *rand.Rand
	seq uint64
}

// NewGenerator creates a generator. It is not safe for concurrent use;
// give each producer its own.
func NewGenerator(prefix string, d time.Duration, failureRatio float64, seed int64) *Generator {
	return &Generator{
		Prefix:       prefix,
		Duration:     d,
		FailureRatio: failureRatio,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next job.
func (g *Generator) Next() Job {
	g.seq++
	return Job{
		Name:     fmt.Sprintf("%s-%d", g.Prefix, g.seq),
		Duration: g.Duration,
		Fail:     g.FailureRatio > 0 && g.rng.Float64() < g.FailureRatio,
	}
}
