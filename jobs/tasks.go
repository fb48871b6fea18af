package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan recomputes the receivables position and publishes it as metrics.
	TaskOverdueScan = "receivables:overdue_scan"
)

// OverdueScanPayload configures an overdue scan run.
type OverdueScanPayload struct {
	TopLimit int `json:"top_limit"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// RedisOpt converts go-redis client options into Asynq connection options.
func RedisOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}
