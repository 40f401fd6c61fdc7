// cmd/api/main.go
package main

import (
	"fulfillment/internal/pkg/bootstrap"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/fulfillment/application"
	"fulfillment/internal/service/fulfillment/infrastructure"
	"fulfillment/internal/service/fulfillment/infrastructure/adapter"
	"fulfillment/internal/service/fulfillment/interfaces"
	"fulfillment/internal/taskqueue"
)

const serviceName = "fulfillment-api"

// The API binary accepts orders and refund requests, persists them and hands
// the asynchronous work to the task queue. It never runs task handlers itself.
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config

			db, err := infrastructure.OpenMySQL(cfg.MySQL.DSN)
			if err != nil {
				logger.L().Fatal().Err(err).Msg("failed to open mysql")
			}
			store := infrastructure.NewGormStore(db)

			broker := taskqueue.NewKafkaBroker(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, serviceName)
			queue := taskqueue.NewQueue(broker)

			gateway := adapter.NewStubGateway(
				cfg.Gateway.ChargeSuccessRate, cfg.Gateway.RefundSuccessRate,
				cfg.Gateway.MinLatency, cfg.Gateway.MaxLatency,
			)
			events := adapter.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
			notifier := application.NewQueueNotifier(queue)

			ledger := application.NewInventoryLedger()
			orchestrator := application.NewSagaOrchestrator(store, ledger, gateway, notifier, events, queue)
			orders := application.NewOrderService(store, orchestrator)
			refunds := application.NewRefundService(store, gateway, events, queue)

			interfaces.NewHandler(orders, refunds).RegisterRoutes(appCtx.Mux)
		},
	})
}
