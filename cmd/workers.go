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

package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	conciliacion "github.com/Dussand/conciliacion-Gmoney"
	"github.com/Dussand/conciliacion-Gmoney/config"
	redis_db "github.com/Dussand/conciliacion-Gmoney/internal/redis-db"
)

// tracingMiddleware wraps every task in a span named after its type.
func tracingMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		ctx, span := otel.Tracer("conciliacion.worker").Start(ctx, "Process "+t.Type())
		defer span.End()

		if id, ok := asynq.GetTaskID(ctx); ok {
			span.SetAttributes(attribute.String("asynq.task_id", id))
		}
		err := h.ProcessTask(ctx, t)
		if err != nil {
			span.RecordError(err)
		}
		return err
	})
}

func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{conf.Queue.SummaryQueue: 1}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency: conf.Queue.NumberOfWorkers,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logrus.WithFields(logrus.Fields{
				"type":    task.Type(),
				"retried": retried,
				"max":     maxRetry,
				"error":   err,
			}).Warn("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	mux.Use(tracingMiddleware)
	mux.HandleFunc(conf.Queue.SummaryQueue, conciliacion.ProcessSummaryWebhook)
}

// workerCommands defines the "workers" command that delivers queued summary rows
// to the logging webhook.
func workerCommands(app *conciliacionInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start reconciliation workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := app.cnf

			shutdown, err := initializeTracing(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
