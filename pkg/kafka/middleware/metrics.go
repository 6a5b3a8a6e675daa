package kafka_middleware

import (
	"context"

	"laundry/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsProducerMiddleware counts publishes by event type and result.
func MetricsProducerMiddleware(published *prometheus.CounterVec) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		err := next(ctx, msg)
		result := "ok"
		if err != nil {
			result = "error"
		}
		published.WithLabelValues(msg.GetEventType(), result).Inc()
		return err
	}
}
