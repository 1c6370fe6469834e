package intake

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxorio/taskexec/pkg/core"
	"github.com/fluxorio/taskexec/pkg/core/concurrency"
	metrics "github.com/fluxorio/taskexec/pkg/observability/prometheus"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	s, err := natssrv.NewServer(&natssrv.Options{Port: -1})
	require.NoError(t, err)
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(s.Shutdown)
	return s
}

func newPool(t *testing.T, workers, capacity int) *concurrency.WorkerPool {
	t.Helper()
	pool, err := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Name:          "intake-test",
		Workers:       workers,
		QueueCapacity: capacity,
		Logger:        core.NopLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Close(ctx)
	})
	return pool
}

func connect(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestIntake_RunsPublishedJobs(t *testing.T) {
	s := runTestNATSServer(t)
	pool := newPool(t, 2, 16)

	in, err := Start(Config{URL: s.ClientURL(), Subject: "jobs", Logger: core.NopLogger{}}, pool, JobDecoder)
	require.NoError(t, err)

	nc := connect(t, s.ClientURL())
	for i := 0; i < 5; i++ {
		require.NoError(t, nc.Publish("jobs", []byte(`{"duration":"1ms"}`)))
	}
	require.NoError(t, nc.Flush())

	require.Eventually(t, func() bool { return pool.CompletedCount() == 5 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, in.Stop(context.Background()))

	accepted, rejected, invalid := in.Stats()
	assert.Equal(t, uint64(5), accepted)
	assert.Zero(t, rejected)
	assert.Zero(t, invalid)
}

func TestIntake_RepliesWithBackpressure(t *testing.T) {
	s := runTestNATSServer(t)
	pool := newPool(t, 1, 1)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	release := make(chan struct{})
	var started atomic.Bool
	decode := func(msg *nats.Msg) (string, Handler, error) {
		return string(msg.Data), func(context.Context, *nats.Msg) error {
			started.Store(true)
			<-release
			return nil
		}, nil
	}
	in, err := Start(Config{URL: s.ClientURL(), Subject: "work", Logger: core.NopLogger{}, Metrics: m}, pool, decode)
	require.NoError(t, err)
	defer in.Stop(context.Background())
	defer close(release)

	nc := connect(t, s.ClientURL())

	resp, err := nc.Request("work", []byte("first"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Header.Get(HeaderStatus))
	require.Eventually(t, started.Load, 5*time.Second, time.Millisecond)

	resp, err = nc.Request("work", []byte("queued"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Header.Get(HeaderStatus))

	resp, err = nc.Request("work", []byte("overflow"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, resp.Header.Get(HeaderStatus))
	assert.Equal(t, "overflow", resp.Header.Get(HeaderTask))
	assert.Contains(t, resp.Header.Get(HeaderError), "task rejected")
	assert.Equal(t, StatusRejected, string(resp.Data))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakeMessages.WithLabelValues("work", StatusAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntakeMessages.WithLabelValues("work", StatusRejected)))
}

func TestIntake_DiscardPolicyRepliesAccepted(t *testing.T) {
	s := runTestNATSServer(t)
	pool, err := concurrency.NewWorkerPool(context.Background(), concurrency.WorkerPoolConfig{
		Name:          "intake-discard",
		Workers:       1,
		QueueCapacity: 1,
		Policy:        concurrency.DiscardPolicy{},
		Logger:        core.NopLogger{},
	})
	require.NoError(t, err)

	release := make(chan struct{})
	var started atomic.Bool
	decode := func(msg *nats.Msg) (string, Handler, error) {
		return string(msg.Data), func(context.Context, *nats.Msg) error {
			started.Store(true)
			<-release
			return nil
		}, nil
	}
	in, err := Start(Config{URL: s.ClientURL(), Subject: "drop", Logger: core.NopLogger{}}, pool, decode)
	require.NoError(t, err)

	nc := connect(t, s.ClientURL())
	_, err = nc.Request("drop", []byte("running"), 5*time.Second)
	require.NoError(t, err)
	require.Eventually(t, started.Load, 5*time.Second, time.Millisecond)
	_, err = nc.Request("drop", []byte("queued"), 5*time.Second)
	require.NoError(t, err)

	resp, err := nc.Request("drop", []byte("dropped"), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Header.Get(HeaderStatus))
	assert.Equal(t, uint64(1), pool.DiscardedCount())

	require.NoError(t, in.Stop(context.Background()))
	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Close(ctx))
	assert.Equal(t, uint64(2), pool.CompletedCount())
}

func TestIntake_InvalidPayload(t *testing.T) {
	s := runTestNATSServer(t)
	pool := newPool(t, 1, 4)

	in, err := Start(Config{URL: s.ClientURL(), Subject: "jobs", Logger: core.NopLogger{}}, pool, JobDecoder)
	require.NoError(t, err)
	defer in.Stop(context.Background())

	nc := connect(t, s.ClientURL())
	resp, err := nc.Request("jobs", []byte(`{"duration":"soon"}`), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, resp.Header.Get(HeaderStatus))
	assert.Zero(t, pool.SubmittedCount())

	_, _, invalid := in.Stats()
	assert.Equal(t, uint64(1), invalid)
}

func TestStart_Validation(t *testing.T) {
	pool := newPool(t, 1, 1)

	_, err := Start(Config{URL: "nats://127.0.0.1:1", Subject: ""}, pool, JobDecoder)
	assert.Error(t, err)
	_, err = Start(Config{Subject: "x"}, nil, JobDecoder)
	assert.Error(t, err)
	_, err = Start(Config{Subject: "x"}, pool, nil)
	assert.Error(t, err)
}

func TestJobDecoder_Naming(t *testing.T) {
	msg := nats.NewMsg("jobs.a")
	name, handler, err := JobDecoder(msg)
	require.NoError(t, err)
	assert.Equal(t, "jobs.a", name)
	assert.NoError(t, handler(context.Background(), msg))

	msg.Header.Set(HeaderTask, "from-header")
	name, _, _ = JobDecoder(msg)
	assert.Equal(t, "from-header", name)

	msg.Data = []byte(`{"name":"from-body"}`)
	name, _, _ = JobDecoder(msg)
	assert.Equal(t, "from-body", name)
}
