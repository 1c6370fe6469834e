package intake

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/taskexec/pkg/workload"
)

// JobDecoder reads a workload.Job from the message body. The task name is
// the job name, then the Taskexec-Task header, then the subject.
func JobDecoder(msg *nats.Msg) (string, Handler, error) {
	job, err := workload.Parse(msg.Data)
	if err != nil {
		return msg.Subject, nil, err
	}
	if job.Name == "" {
		job.Name = msg.Header.Get(HeaderTask)
	}
	if job.Name == "" {
		job.Name = msg.Subject
	}
	return job.Name, func(ctx context.Context, _ *nats.Msg) error {
		return job.Run(ctx)
	}, nil
}
