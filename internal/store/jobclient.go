package store

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"muninn/internal/tasks"
)

var _ JobClient = (*AsynqJobClient)(nil)

// AsynqJobClient enqueues background tasks over Redis.
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(opt asynq.RedisClientOpt) *AsynqJobClient {
	return &AsynqJobClient{client: asynq.NewClient(opt)}
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	log.Debugf("jobs: enqueued %s id=%s queue=%s", task.Type(), info.ID, info.Queue)
	return nil
}

func (jc *AsynqJobClient) EnqueueThreadTitleJob(ctx context.Context, ownerID, threadID int64) error {
	task, err := tasks.NewThreadTitleTask(ownerID, threadID)
	if err != nil {
		return err
	}
	return jc.Enqueue(ctx, task)
}
