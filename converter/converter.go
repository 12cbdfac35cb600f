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

// Package converter turns the provider's plain text export into a workbook by
// forwarding it to the conversion webhook.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/Dussand/conciliacion-Gmoney/ingest"
	"github.com/Dussand/conciliacion-Gmoney/internal/request"
	"github.com/Dussand/conciliacion-Gmoney/table"
)

// FormField is the multipart field the conversion webhook reads the export from.
const FormField = "gmoney_txt"

// ErrNotConfigured is returned when no conversion URL is set.
var ErrNotConfigured = errors.New("conversion webhook url is not configured")

// ConversionError reports a conversion webhook answer other than 200.
type ConversionError struct {
	StatusCode int
	Body       string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may help.
func (e *ConversionError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	url             string
	httpClient      *http.Client
	initialInterval time.Duration
	maxElapsedTime  time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. to install a mock transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetry sets the first retry delay and the total time spent retrying.
func WithRetry(initial, maxElapsed time.Duration) Option {
	return func(cl *Client) {
		cl.initialInterval = initial
		cl.maxElapsedTime = maxElapsed
	}
}

// New returns a Client posting to url. timeout bounds each attempt.
func New(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:             url,
		httpClient:      &http.Client{Timeout: timeout},
		initialInterval: 500 * time.Millisecond,
		maxElapsedTime:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert posts the text export and returns the workbook the webhook answers with.
// Transport failures and temporary statuses are retried with exponential backoff
// until the elapsed-time budget or ctx runs out.
func (c *Client) Convert(ctx context.Context, filename string, export io.Reader) ([]byte, error) {
	if c.url == "" {
		return nil, ErrNotConfigured
	}
	content, err := io.ReadAll(export)
	if err != nil {
		return nil, fmt.Errorf("error reading export: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = c.maxElapsedTime

	attempt := 0
	var workbook []byte
	operation := func() error {
		attempt++
		body, contentType, err := request.MultipartFile(FormField, filename, "text/plain", bytes.NewReader(content))
		if err != nil {
			return backoff.Permanent(err)
		}

		status, data, err := request.Post(ctx, c.httpClient, c.url, contentType, body)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			logrus.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("conversion webhook unreachable, retrying")
			return err
		}
		if status != http.StatusOK {
			convErr := &ConversionError{StatusCode: status, Body: truncate(string(data), 256)}
			if convErr.Temporary() {
				logrus.WithFields(logrus.Fields{"attempt": attempt, "status": status}).Warn("conversion webhook failed, retrying")
				return convErr
			}
			return backoff.Permanent(convErr)
		}
		workbook = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return workbook, nil
}

// ConvertTable converts the export and decodes the first sheet of the result.
func (c *Client) ConvertTable(ctx context.Context, filename string, export io.Reader) (*table.Table, error) {
	workbook, err := c.Convert(ctx, filename, export)
	if err != nil {
		return nil, err
	}
	return ingest.ReadXLSX(bytes.NewReader(workbook))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
