package concurrency

// PoolState represents pool lifecycle states
type PoolState int32

const (
	PoolRunning PoolState = iota
	PoolShuttingDown
	PoolTerminated
)

func (s PoolState) String() string {
	switch s {
	case PoolRunning:
		return "running"
	case PoolShuttingDown:
		return "shutting-down"
	case PoolTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WorkerState represents the current state of a worker
type WorkerState int32

const (
	WorkerWaiting WorkerState = iota
	WorkerExecuting
	WorkerExited
)

func (s WorkerState) String() string {
	switch s {
	case WorkerWaiting:
		return "waiting"
	case WorkerExecuting:
		return "executing"
	case WorkerExited:
		return "exited"
	default:
		return "unknown"
	}
}

// WorkerStats is a per-worker snapshot.
type WorkerStats struct {
	WorkerID      int    `json:"worker_id"`
	State         string `json:"state"`
	TasksExecuted uint64 `json:"tasks_executed"`
	TasksFailed   uint64 `json:"tasks_failed"`
}

// Stats is a point-in-time snapshot of a WorkerPool.
//
// Counters are read without a global lock, so a snapshot taken while tasks
// are moving may be slightly inconsistent. After termination,
// Submitted == Completed + Rejected + Discarded.
type Stats struct {
	Name             string        `json:"name"`
	State            string        `json:"state"`
	Workers          int           `json:"workers"`
	ActiveWorkers    int64         `json:"active_workers"`
	QueueSize        int           `json:"queue_size"`
	QueueCapacity    int           `json:"queue_capacity"`
	QueueUtilization float64       `json:"queue_utilization"`
	Policy           string        `json:"policy"`
	Submitted        uint64        `json:"submitted"`
	Completed        uint64        `json:"completed"`
	Failed           uint64        `json:"failed"`
	Rejected         uint64        `json:"rejected"`
	Discarded        uint64        `json:"discarded"`
	WorkerStats      []WorkerStats `json:"worker_stats"`
}
