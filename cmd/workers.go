package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"

	"github.com/payflowhq/payflow"
	"github.com/payflowhq/payflow/config"
	redis_db "github.com/payflowhq/payflow/internal/redis-db"
)

// startWorkers runs the asynq server for settlement and webhook tasks plus
// the asynqmon dashboard. The returned server must be shut down by the caller.
func startWorkers(p *payflowInstance, conf *config.Configuration) (*asynq.Server, error) {
	connOpt, err := redis_db.AsynqConnOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: 10,
		Queues:      p.queue.Queues(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logrus.WithField("task", task.Type()).Errorf("task failed: %v", err)
		}),
	})

	mux := asynq.NewServeMux()
	payflow.RegisterHandlers(mux, p.payflow, p.hooks)

	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: connOpt,
	})
	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			logrus.Errorf("could not start asynqmon server: %v", err)
		}
	}()

	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("could not start workers: %v", err)
	}
	return srv, nil
}
