package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/payflowhq/payflow/config"
)

const redacted = "********"

// redactConfig returns a copy that is safe to print.
func redactConfig(cfg config.Configuration) config.Configuration {
	if cfg.Server.SecretKey != "" {
		cfg.Server.SecretKey = redacted
	}
	if cfg.PosthogKey != "" {
		cfg.PosthogKey = redacted
	}
	if cfg.Notification.Slack.WebhookUrl != "" {
		cfg.Notification.Slack.WebhookUrl = redacted
	}
	if len(cfg.Notification.Webhook.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Notification.Webhook.Headers))
		for k := range cfg.Notification.Webhook.Headers {
			headers[k] = redacted
		}
		cfg.Notification.Webhook.Headers = headers
	}
	return cfg
}

func configCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instances computed configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redactConfig(*cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
