// Command taskexec runs a bounded worker pool as a service (serve) or
// measures one under synthetic load (bench).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree. Results go to stdout, logs to
// stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "taskexec",
		Short: "Bounded worker pool service with rejection policies.",
		Long: `taskexec runs tasks on a fixed set of workers fed by a bounded queue.

When the queue is full a rejection policy decides what happens to the new
task: abort, caller-runs, discard or discard-oldest. Tasks can arrive from a
NATS subject or from the built-in load generator; Prometheus metrics, pool
statistics and health probes are served on the admin address.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from (YAML or JSON).")

	rc.AddCommand(newServeCommand(stderr))
	rc.AddCommand(newBenchCommand(stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
