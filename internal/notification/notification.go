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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/payflowhq/payflow/config"
	"github.com/payflowhq/payflow/internal/request"
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

func slackPayload(project string, err error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Error From %s 🐞", project), Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts err to the configured Slack webhook.
func SlackNotification(ctx context.Context, err error) error {
	conf, cErr := config.Fetch()
	if cErr != nil {
		return cErr
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return nil
	}
	return request.PostJSON(ctx, conf.Notification.Slack.WebhookUrl, nil, slackPayload(conf.ProjectName, err, time.Now()))
}

// NotifyError reports a failure that has no caller to return to, such as a
// settlement or webhook delivery running in the background. It logs locally
// and forwards to Slack when configured, without blocking the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Warn(err)
			return
		}
		if conf.Notification.Slack.WebhookUrl == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := SlackNotification(ctx, systemError); err != nil {
			logrus.Warnf("slack notification failed: %v", err)
		}
	}(systemError)
}
