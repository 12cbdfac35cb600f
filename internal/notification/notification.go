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

package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/internal/request"
)

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

// SlackNotification posts err and the current time to the Slack webhook at url.
//
// Parameters:
// - ctx context.Context: Bounds the request.
// - url string: The Slack incoming webhook URL.
// - project string: Shown in the message header.
// - err error: The error to report.
//
// Returns:
// - error: An error if the request fails or Slack does not answer 200.
func SlackNotification(ctx context.Context, url, project string, err error) error {
	message := slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Error From %s 🐞", project), Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Error:*\n" + err.Error()}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: "*Time:*\n" + time.Now().Format(time.RFC822)}}},
	}}

	status, body, postErr := request.PostJSON(ctx, &http.Client{Timeout: 10 * time.Second}, url, message, nil)
	if postErr != nil {
		return postErr
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d: %s", status, string(body))
	}
	return nil
}

// NotifyError logs systemError and, when a Slack webhook is configured, reports it
// there. The notification runs in its own goroutine so callers never block on it.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Error(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl == "" {
			return
		}
		if err := SlackNotification(context.Background(), conf.Notification.Slack.WebhookUrl, conf.ProjectName, systemError); err != nil {
			logrus.WithField("error", err).Warn("failed to notify slack")
		}
	}(systemError)
}
