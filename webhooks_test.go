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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/model"
)

func mockLogWebhook(url string) {
	config.MockConfig(&config.Configuration{
		Notification: config.Notification{
			LogWebhook: config.LogWebhook{
				Url:     url,
				Timeout: 2,
				Headers: map[string]string{"X-Api-Key": "secret"},
			},
		},
	})
}

func summaryTask(t *testing.T) *asynq.Task {
	t.Helper()
	payload := model.NewSummaryPayload("run_789", "analista",
		model.Comparison{Date: "2024-01-02", State: "Conciliado"},
		time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(config.DEFAULT_SUMMARY_QUEUE, data)
}

func TestProcessSummaryWebhook(t *testing.T) {
	var received model.SummaryPayload
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()
	mockLogWebhook(server.URL)

	err := ProcessSummaryWebhook(context.Background(), summaryTask(t))
	require.NoError(t, err)
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "run_789", received.RunID)
	assert.Equal(t, "2024-01-02", received.Fecha)
	assert.Equal(t, "2024-01-02 10:00:00", received.TimestampEjecucion)
}

func TestProcessSummaryWebhook_ServerErrorIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	mockLogWebhook(server.URL)

	err := ProcessSummaryWebhook(context.Background(), summaryTask(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProcessSummaryWebhook_InvalidPayloadSkipsRetry(t *testing.T) {
	mockLogWebhook("http://localhost:1/log")

	err := ProcessSummaryWebhook(context.Background(), asynq.NewTask(config.DEFAULT_SUMMARY_QUEUE, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessSummaryWebhook_NoWebhookConfigured(t *testing.T) {
	mockLogWebhook("")

	err := ProcessSummaryWebhook(context.Background(), summaryTask(t))
	assert.NoError(t, err)
}
