package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/finledger/api/internal/model"
)

// TaskTypeReportGenerate is the asynq task type for report generation.
const TaskTypeReportGenerate = "report:generate"

// reportTaskTimeout bounds a single execution.
const reportTaskTimeout = 10 * time.Minute

// reportTaskMaxRetry keeps crash recovery alive: when a worker process dies
// mid-run, the expired lease counts as a failed attempt and the task is
// redelivered instead of archived. Finished jobs are skipped on redelivery,
// so retries never run a job twice.
const reportTaskMaxRetry = 3

type reportTaskPayload struct {
	OwnerID string `json:"ownerId"`
	JobID   string `json:"jobId"`
}

// AsynqDispatcher enqueues report jobs onto the Redis-backed task queue.
// Tasks carry only the job reference; the job record is the source of truth.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, job *model.ReportJob) error {
	payload, err := json.Marshal(reportTaskPayload{OwnerID: job.OwnerID, JobID: job.ID})
	if err != nil {
		return fmt.Errorf("encode report task: %w", err)
	}

	task := asynq.NewTask(TaskTypeReportGenerate, payload)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(reportTaskMaxRetry), asynq.Timeout(reportTaskTimeout)); err != nil {
		return fmt.Errorf("enqueue report task: %w", err)
	}
	return nil
}

// ProcessTask is the asynq handler for report generation tasks.
func (w *ReportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload reportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode report task: %w", err)
	}
	return w.Execute(ctx, payload.OwnerID, payload.JobID)
}
