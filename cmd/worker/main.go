// cmd/worker/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/analytics"
	"fulfillment/internal/service/fulfillment/application"
	"fulfillment/internal/service/fulfillment/infrastructure"
	"fulfillment/internal/service/fulfillment/infrastructure/adapter"
	"fulfillment/internal/taskqueue"
)

const serviceName = "fulfillment-worker"

// The worker binary runs the task handlers (saga steps, refunds,
// notifications) and the analytics projection. Its HTTP surface is health and
// metrics only.
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
		},
		Run: func(ctx context.Context, appCtx bootstrap.AppCtx) error {
			cfg := appCtx.Config

			db, err := infrastructure.OpenMySQL(cfg.MySQL.DSN)
			if err != nil {
				return err
			}
			store := infrastructure.NewGormStore(db)

			rdb, err := redis.NewClient(cfg.Redis.Addr)
			if err != nil {
				return err
			}
			defer rdb.Close()

			broker := taskqueue.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, serviceName)
			defer broker.Close()
			queue := taskqueue.NewQueue(broker)

			gateway := adapter.NewStubGateway(
				cfg.Gateway.ChargeSuccessRate, cfg.Gateway.RefundSuccessRate,
				cfg.Gateway.MinLatency, cfg.Gateway.MaxLatency,
			)
			events := adapter.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
			defer events.Close()
			notifier := application.NewQueueNotifier(queue)

			ledger := application.NewInventoryLedger()
			orchestrator := application.NewSagaOrchestrator(store, ledger, gateway, notifier, events, queue)
			refunds := application.NewRefundService(store, gateway, events, queue)
			notifications := application.NewNotificationService(store)

			worker := taskqueue.NewWorker(broker, taskqueue.NewRedisDeduper(rdb), cfg.Worker.RetryDelay, cfg.Worker.Concurrency)
			orchestrator.Register(worker)
			refunds.Register(worker)
			notifications.Register(worker)

			projector := analytics.NewProjector(cfg.Kafka.Brokers, cfg.Kafka.EventTopic, rdb)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return worker.Run(ctx,
					application.QueueOrders,
					application.QueueRefunds,
					application.QueueNotifications,
				)
			})
			g.Go(func() error { return projector.Run(ctx) })
			return g.Wait()
		},
	})
}
