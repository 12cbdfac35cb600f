/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package conciliacion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Dussand/conciliacion-Gmoney/config"
	redis_db "github.com/Dussand/conciliacion-Gmoney/internal/redis-db"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

// Queue enqueues summary rows for the workers to deliver.
type Queue struct {
	Client    *asynq.Client
	queueName string
	maxRetry  int
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
// - error: An error if the Redis address cannot be parsed.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return NewQueueWithClient(asynq.NewClient(redisOption), conf.Queue.SummaryQueue, conf.Queue.MaxRetry), nil
}

// NewQueueWithClient wraps an existing asynq client.
func NewQueueWithClient(client *asynq.Client, queueName string, maxRetry int) *Queue {
	return &Queue{Client: client, queueName: queueName, maxRetry: maxRetry}
}

// PublishSummaries enqueues one task per payload. The task ID is the run and date,
// so publishing the same run twice does not post twice.
func (q *Queue) PublishSummaries(ctx context.Context, payloads []model.SummaryPayload) error {
	ctx, span := tracer.Start(ctx, "Publishing summaries")
	defer span.End()

	for _, p := range payloads {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		task := asynq.NewTask(q.queueName, data,
			asynq.TaskID(summaryTaskID(p)),
			asynq.Queue(q.queueName),
			asynq.MaxRetry(q.maxRetry),
			asynq.Timeout(time.Minute),
		)
		info, err := q.Client.EnqueueContext(ctx, task)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"run_id": p.RunID, "fecha": p.Fecha, "error": err}).Error("failed to enqueue summary")
			return err
		}
		logrus.WithFields(logrus.Fields{"task_id": info.ID, "queue": info.Queue}).Debug("summary enqueued")
	}
	return nil
}

// Close releases the Redis connection of the client.
func (q *Queue) Close() error {
	return q.Client.Close()
}

func summaryTaskID(p model.SummaryPayload) string {
	return fmt.Sprintf("%s:%s", p.RunID, p.Fecha)
}

// publishSummaries queues one row per compared date. Nothing is queued when no
// logging webhook is configured.
func (c *Conciliacion) publishSummaries(ctx context.Context, run *model.Run) {
	if c.cnf.Notification.LogWebhook.Url == "" || len(run.Comparisons) == 0 {
		return
	}

	executedAt := c.now()
	if c.policy.Location != nil {
		executedAt = executedAt.In(c.policy.Location)
	}
	payloads := make([]model.SummaryPayload, len(run.Comparisons))
	for i, comparison := range run.Comparisons {
		payloads[i] = model.NewSummaryPayload(run.RunID, run.Operator, comparison, executedAt)
	}

	if err := c.publisher.PublishSummaries(ctx, payloads); err != nil {
		logrus.WithFields(logrus.Fields{"run_id": run.RunID, "error": err}).Warn("failed to queue summaries")
	}
}
