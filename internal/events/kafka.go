package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes domain events to Kafka topics. One writer per
// topic so partitioning keys stay scoped to their stream.
type KafkaPublisher struct {
	rmaWriter       *kafka.Writer
	inventoryWriter *kafka.Writer
	logger          *zap.Logger
}

// NewKafkaPublisher creates a publisher against the given brokers
func NewKafkaPublisher(brokers []string, rmaTopic, inventoryTopic string, logger *zap.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return &KafkaPublisher{
		rmaWriter:       newWriter(rmaTopic),
		inventoryWriter: newWriter(inventoryTopic),
		logger:          logger,
	}
}

func (p *KafkaPublisher) PublishRMAStatusChange(ctx context.Context, event RMAStatusChange) error {
	return p.publish(ctx, p.rmaWriter, event.RequestID.String(), event)
}

func (p *KafkaPublisher) PublishInventoryChange(ctx context.Context, event InventoryChange) error {
	return p.publish(ctx, p.inventoryWriter, event.ProductID.String(), event)
}

func (p *KafkaPublisher) publish(ctx context.Context, w *kafka.Writer, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("topic", w.Topic),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.rmaWriter.Close(); err != nil {
		return err
	}
	return p.inventoryWriter.Close()
}
