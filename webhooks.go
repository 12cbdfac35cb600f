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
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/internal/request"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

// ProcessSummaryWebhook delivers one queued summary row to the logging webhook.
// A non-2xx answer is returned as an error so asynq retries the task.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - task *asynq.Task: The task containing the summary payload.
//
// Returns:
// - error: An error if the payload is invalid or delivery fails.
func ProcessSummaryWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	hook := conf.Notification.LogWebhook
	if hook.Url == "" {
		return nil
	}

	var payload model.SummaryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("Error unmarshaling task payload: %v", err)
		return fmt.Errorf("invalid summary payload: %v: %w", err, asynq.SkipRetry)
	}

	client := &http.Client{Timeout: time.Duration(hook.Timeout) * time.Second}
	status, body, err := request.PostJSON(ctx, client, hook.Url, payload, hook.Headers)
	if err != nil {
		logrus.WithFields(logrus.Fields{"run_id": payload.RunID, "error": err}).Warn("logging webhook unreachable")
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("logging webhook returned status %d: %s", status, string(body))
	}

	logrus.WithFields(logrus.Fields{"run_id": payload.RunID, "fecha": payload.Fecha}).Info("summary logged")
	return nil
}
