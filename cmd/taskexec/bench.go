package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fluxorio/taskexec/pkg/core/concurrency"
	"github.com/fluxorio/taskexec/pkg/workload"
)

type benchOptions struct {
	Workers      int
	Queue        int
	Policy       string
	Tasks        int
	Producers    int
	TaskDuration time.Duration
	FailureRatio float64
	Timeout      time.Duration
	LogLevel     string
}

// benchResult is printed as JSON when the run finishes.
type benchResult struct {
	Stats        concurrency.Stats `json:"stats"`
	Elapsed      string            `json:"elapsed"`
	Throughput   float64           `json:"throughput_per_sec"`
	SubmitErrors uint64            `json:"submit_errors"`
	AccountingOK bool              `json:"accounting_ok"`
}

func newBenchCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run synthetic tasks through a pool and print its statistics.",
		Long: `
Runs --tasks synthetic tasks from --producers concurrent submitters through a
fresh pool, shuts it down, and prints the final statistics as JSON. The run
fails if submitted != completed + rejected + discarded.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), opts, stdout, stderr)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&opts.Workers, "workers", "w", 4, "Number of workers.")
	flags.IntVarP(&opts.Queue, "queue", "q", 64, "Queue capacity.")
	flags.StringVarP(&opts.Policy, "policy", "p", "abort", "Rejection policy: abort, caller-runs, discard or discard-oldest.")
	flags.IntVarP(&opts.Tasks, "tasks", "n", 10000, "Total number of tasks.")
	flags.IntVar(&opts.Producers, "producers", 4, "Number of concurrent submitters.")
	flags.DurationVar(&opts.TaskDuration, "task-duration", 0, "How long each task sleeps.")
	flags.Float64Var(&opts.FailureRatio, "failure-ratio", 0, "Fraction of tasks that return an error.")
	flags.DurationVar(&opts.Timeout, "timeout", time.Minute, "Maximum time to wait for the pool to drain.")
	flags.StringVar(&opts.LogLevel, "log-level", "warn", "Log level for pool messages.")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Tasks < 0 || opts.Producers <= 0 {
		return fmt.Errorf("bench: tasks must be >= 0 and producers > 0")
	}
	logger, err := newLogger(opts.LogLevel, stderr)
	if err != nil {
		return err
	}
	policy, err := concurrency.PolicyByName(opts.Policy)
	if err != nil {
		return err
	}
	pool, err := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Name:          "bench",
		Workers:       opts.Workers,
		QueueCapacity: opts.Queue,
		Policy:        policy,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	var submitErrors atomic.Uint64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < opts.Producers; p++ {
		n := opts.Tasks / opts.Producers
		if p == 0 {
			n += opts.Tasks % opts.Producers
		}
		gen := workload.NewGenerator(fmt.Sprintf("bench-%d", p), opts.TaskDuration, opts.FailureRatio, int64(p))
		g.Go(func() error {
			for i := 0; i < n; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := pool.Submit(gen.Next().Task()); err != nil {
					if !concurrency.IsRejected(err) {
						return err
					}
					submitErrors.Add(1)
				}
			}
			return nil
		})
	}
	produceErr := g.Wait()

	pool.Shutdown()
	if !pool.AwaitTermination(opts.Timeout) {
		return fmt.Errorf("bench: pool did not drain within %s", opts.Timeout)
	}
	elapsed := time.Since(start)

	s := pool.Stats()
	res := benchResult{
		Stats:        s,
		Elapsed:      elapsed.String(),
		SubmitErrors: submitErrors.Load(),
		AccountingOK: s.Submitted == s.Completed+s.Rejected+s.Discarded,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		res.Throughput = float64(s.Completed) / secs
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if produceErr != nil && !errors.Is(produceErr, context.Canceled) {
		return produceErr
	}
	if !res.AccountingOK {
		return fmt.Errorf("bench: accounting mismatch: submitted %d != completed %d + rejected %d + discarded %d",
			s.Submitted, s.Completed, s.Rejected, s.Discarded)
	}
	return nil
}
