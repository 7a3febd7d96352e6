// internal/service/order/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"takeout/internal/pkg/mq"
	"takeout/internal/service/order/domain"
	"takeout/internal/service/order/port"
)

const defaultOrderEventsTopic = "order-events"

// KafkaEventPublisher 把订单生命周期事件发到 Kafka。
// 按订单号分区，同一订单的事件保持顺序。
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	if topic == "" {
		topic = defaultOrderEventsTopic
	}
	return &KafkaEventPublisher{writer: mq.NewKafkaWriter(brokers, topic)}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal order event")
	}
	key := []byte(event.OrderNumber)
	return pkgerrors.Wrap(mq.ProduceMessage(ctx, p.writer, key, payload), "produce order event")
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

var _ port.EventPublisher = (*KafkaEventPublisher)(nil)
