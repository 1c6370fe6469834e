// Package intake feeds a worker pool from a NATS subject.
//
// Every message on the subject becomes one task. Subscribers share a queue
// group, so several processes can split the stream. When the message has a
// reply subject the sender gets "accepted" or "rejected" back as soon as
// the pool has decided; rejection is how backpressure reaches producers.
//
// "accepted" means Submit returned nil, not that the task will run. Under
// the discard and discard-oldest policies a full pool drops tasks without
// an error, so those drops are only visible in the pool's discarded count.
// Use abort (or caller-runs) when producers must learn about every drop.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/taskexec/pkg/core"
	"github.com/fluxorio/taskexec/pkg/core/concurrency"
	metrics "github.com/fluxorio/taskexec/pkg/observability/prometheus"
)

// Reply headers.
const (
	HeaderStatus = "Taskexec-Status"
	HeaderTask   = "Taskexec-Task"
	HeaderError  = "Taskexec-Error"
)

// Reply statuses.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusInvalid  = "invalid"
)

// Handler turns a message into work. It runs on a pool worker.
type Handler func(ctx context.Context, msg *nats.Msg) error

// Decoder validates a message before it is submitted and names the task.
// A decoding error is answered with StatusInvalid and nothing is submitted.
type Decoder func(msg *nats.Msg) (name string, handler Handler, err error)

// Config configures an Intake.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Subject to subscribe to. Required.
	Subject string

	// Queue is the queue group. Default: the subject.
	Queue string

	// Name is an optional NATS connection name.
	Name string

	Logger  core.Logger
	Metrics *metrics.Metrics
}

// Intake is a running NATS subscription feeding an executor.
type Intake struct {
	cfg    Config
	nc     *nats.Conn
	exec   concurrency.Executor
	decode Decoder
	logger core.Logger
	closed chan struct{}

	accepted atomic.Uint64
	rejected atomic.Uint64
	invalid  atomic.Uint64
}

// Start connects to NATS and subscribes. Messages are submitted to exec
// after decode accepts them.
func Start(cfg Config, exec concurrency.Executor, decode Decoder) (*Intake, error) {
	if exec == nil {
		return nil, fmt.Errorf("intake: executor cannot be nil")
	}
	if decode == nil {
		return nil, fmt.Errorf("intake: decoder cannot be nil")
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("intake: subject is required")
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Queue == "" {
		cfg.Queue = cfg.Subject
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}

	in := &Intake{
		cfg:    cfg,
		exec:   exec,
		decode: decode,
		logger: cfg.Logger.Named("intake"),
		closed: make(chan struct{}),
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ClosedHandler(func(*nats.Conn) { close(in.closed) }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				in.logger.Warnf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			in.logger.Infof("reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("intake: connect %s: %w", cfg.URL, err)
	}
	in.nc = nc

	if _, err := nc.QueueSubscribe(cfg.Subject, cfg.Queue, in.onMsg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("intake: subscribe %s: %w", cfg.Subject, err)
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("intake: flush subscription: %w", err)
	}
	in.logger.Infof("subscribed to %s (queue %s) feeding %s", cfg.Subject, cfg.Queue, exec.Name())
	return in, nil
}

func (in *Intake) onMsg(msg *nats.Msg) {
	name, handler, err := in.decode(msg)
	if err != nil {
		in.invalid.Add(1)
		in.record(StatusInvalid)
		in.logger.Warnf("invalid message on %s: %v", msg.Subject, err)
		in.reply(msg, StatusInvalid, name, err)
		return
	}

	task := concurrency.NewNamedTask(name, func(ctx context.Context) error {
		return handler(ctx, msg)
	})
	if err := in.exec.Submit(task); err != nil {
		in.rejected.Add(1)
		in.record(StatusRejected)
		in.logger.Debugf("rejected %s: %v", name, err)
		in.reply(msg, StatusRejected, name, err)
		return
	}
	in.accepted.Add(1)
	in.record(StatusAccepted)
	in.reply(msg, StatusAccepted, name, nil)
}

func (in *Intake) record(result string) {
	if in.cfg.Metrics != nil {
		in.cfg.Metrics.RecordIntakeMessage(in.cfg.Subject, result)
	}
}

func (in *Intake) reply(msg *nats.Msg, status, name string, cause error) {
	if msg.Reply == "" {
		return
	}
	resp := nats.NewMsg(msg.Reply)
	resp.Header.Set(HeaderStatus, status)
	resp.Header.Set(HeaderTask, name)
	if cause != nil {
		resp.Header.Set(HeaderError, cause.Error())
	}
	resp.Data = []byte(status)
	if err := msg.RespondMsg(resp); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		in.logger.Warnf("reply to %s: %v", msg.Reply, err)
	}
}

// Stats returns message counts since Start.
func (in *Intake) Stats() (accepted, rejected, invalid uint64) {
	return in.accepted.Load(), in.rejected.Load(), in.invalid.Load()
}

// Stop drains the subscription so messages already delivered are still
// submitted, then closes the connection. It does not shut the executor
// down.
func (in *Intake) Stop(ctx context.Context) error {
	if err := in.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		in.nc.Close()
		return fmt.Errorf("intake: drain: %w", err)
	}
	select {
	case <-in.closed:
		in.logger.Infof("stopped")
		return nil
	case <-ctx.Done():
		in.nc.Close()
		return ctx.Err()
	}
}
