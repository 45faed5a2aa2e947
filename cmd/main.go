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
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/payflowhq/payflow"
	"github.com/payflowhq/payflow/config"
	"github.com/payflowhq/payflow/database"
	redlock "github.com/payflowhq/payflow/internal/lock"
	"github.com/payflowhq/payflow/internal/metrics"
	"github.com/payflowhq/payflow/internal/notification"
	redis_db "github.com/payflowhq/payflow/internal/redis-db"
)

// PayFlow represents the CLI application, encapsulating the root Cobra command.
type PayFlow struct {
	cmd *cobra.Command
}

// payflowInstance holds everything the commands share at runtime.
type payflowInstance struct {
	payflow *payflow.PayFlow
	cnf     *config.Configuration
	metrics *metrics.Metrics
	redis   *redis_db.Redis
	queue   *payflow.Queue
	hooks   *payflow.WebhookClient
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the core before any command runs.
func preRun(app *payflowInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if err := setupPayFlow(cmd.Context(), app, cnf); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.cnf = cnf
		return nil
	}
}

// setupPayFlow wires the store, index, lock and scheduler for the configured
// backends.
func setupPayFlow(ctx context.Context, app *payflowInstance, cfg *config.Configuration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app.metrics = metrics.New()
	opts := []payflow.Option{
		payflow.WithConfig(cfg),
		payflow.WithMetrics(app.metrics),
	}

	if cfg.UsesRedis() {
		rdb, err := redis_db.NewRedisClient(ctx, cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %v", err)
		}
		app.redis = rdb
	}

	var index database.IdempotencyIndex = database.NewMemoryIndex()
	if cfg.Idempotency.Backend == config.BackendRedis {
		index = database.NewRedisIndex(app.redis.Client(), cfg.Idempotency.KeyPrefix)
	}

	if cfg.Lock.Backend == config.BackendRedis {
		opts = append(opts, payflow.WithLocker(redlock.NewRedisKeyLocker(
			app.redis.Client(),
			cfg.Lock.KeyPrefix,
			time.Duration(cfg.Lock.TTLMs)*time.Millisecond,
			time.Duration(cfg.Lock.WaitTimeoutMs)*time.Millisecond,
		)))
	}

	if cfg.Notification.Webhook.Url != "" {
		app.hooks = payflow.NewWebhookClient(cfg.Notification.Webhook.Url, cfg.Notification.Webhook.Headers)
	}

	if cfg.Queue.Backend == config.BackendRedis {
		connOpt, err := redis_db.AsynqConnOpt(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
		if err != nil {
			return fmt.Errorf("error parsing redis url: %v", err)
		}
		app.queue = payflow.NewQueue(connOpt, cfg.Queue.SettlementQueue, cfg.Queue.WebhookQueue, cfg.Queue.MaxRetry)
		opts = append(opts, payflow.WithScheduler(app.queue))
		if app.hooks != nil {
			opts = append(opts, payflow.WithWebhooks(app.queue))
		}
	} else if app.hooks != nil {
		opts = append(opts, payflow.WithWebhooks(app.hooks))
	}

	p, err := payflow.NewPayFlow(database.NewDataSource(index), opts...)
	if err != nil {
		return fmt.Errorf("error creating payflow: %v", err)
	}
	app.payflow = p
	return nil
}

func (app *payflowInstance) close() {
	if app.payflow != nil {
		app.payflow.Close()
	}
	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			logrus.Warnf("closing queue: %v", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			logrus.Warnf("closing redis: %v", err)
		}
	}
}

// NewCLI creates the command-line interface for PayFlow.
func NewCLI() *PayFlow {
	var configFile string
	p := &payflowInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payflow",
		Short: "Idempotent payment intake",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payflow.json", "Configuration file for payflow")
	rootCmd.PersistentPreRunE = preRun(p, &configFile)
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) { p.close() }

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(simulateCommands(p))
	rootCmd.AddCommand(configCommands())

	return &PayFlow{cmd: rootCmd}
}

func (w PayFlow) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
