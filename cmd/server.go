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
	"net/http"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"

	"github.com/payflowhq/payflow"
	"github.com/payflowhq/payflow/api"
	"github.com/payflowhq/payflow/config"
	trace "github.com/payflowhq/payflow/internal/traces"
)

/*
serveTLS starts an HTTPS server using CertMagic for certificate management.
Without a domain it falls back to localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: conf.CertStoragePath}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTPS server: %v", err)
	}
	return nil
}

// sendHeartbeat reports a periodic heartbeat to PostHog.
func sendHeartbeat(client posthog.Client, heartbeatID string) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		for range ticker.C {
			if err := client.Enqueue(posthog.Capture{
				DistinctId: heartbeatID,
				Event:      "server_heartbeat",
				Properties: map[string]interface{}{
					"timestamp": time.Now().UTC(),
				},
			}); err != nil {
				log.Printf("Failed to send heartbeat: %v", err)
			}
		}
	}()
}

func initializeRouter(p *payflowInstance) (*gin.Engine, error) {
	a := api.NewAPI(p.payflow, p.metrics)
	if a == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return a.Router(), nil
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if err := config.SetOtelExporterEnvs(); err != nil {
		return nil, err
	}
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func initializePostHog(key string) (posthog.Client, error) {
	client, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: "https://us.i.posthog.com"})
	if err != nil {
		return nil, err
	}
	sendHeartbeat(client, uuid.New().String())
	return client, nil
}

func initializeObservability(ctx context.Context, cfg *config.Configuration) (posthog.Client, func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return nil, func(context.Context) error { return nil }, nil
	}

	shutdown, err := initializeTracing(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.PosthogKey == "" {
		return nil, shutdown, nil
	}
	phClient, err := initializePostHog(cfg.PosthogKey)
	if err != nil {
		log.Printf("PostHog disabled: %v", err)
		return nil, shutdown, nil
	}
	return phClient, shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

/*
serverCommands returns the `start` command. It serves the HTTP API and, when
the queue backend is redis, runs the settlement workers in the same process
since payment records live in this process's memory.
*/
func serverCommands(p *payflowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start payflow server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			phClient, shutdown, err := initializeObservability(ctx, cfg)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()
			if phClient != nil {
				defer phClient.Close()
			}

			if p.queue != nil {
				workers, err := startWorkers(p, cfg)
				if err != nil {
					log.Fatal(err)
				}
				defer workers.Shutdown()
			}

			recovery := payflow.NewSettlementRecoveryProcessor(p.payflow, 30*time.Second)
			recovery.Start(ctx)
			defer recovery.Stop()

			router, err := initializeRouter(p)
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
