package kafka

import (
	"context"

	"image-server/internal/broker"
	"image-server/internal/config"

	kafka "github.com/segmentio/kafka-go"
	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type ConsumerClient struct {
	consumer *wbkafka.Consumer
	retries  retry.Strategy
	buffer   int
}

func NewConsumerClient(cfg *config.Config) *ConsumerClient {
	return &ConsumerClient{
		consumer: wbkafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID),
		retries:  cfg.DefaultRetryStrategy(),
		buffer:   cfg.Worker.Concurrency,
	}
}

// Start consumes in the background and forwards every fetched message to out.
func (c *ConsumerClient) Start(ctx context.Context, out chan<- *broker.Message) {
	raw := make(chan kafka.Message, c.buffer)

	go c.consumer.StartConsuming(ctx, raw, c.retries)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				select {
				case out <- fromKafka(msg):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

func (c *ConsumerClient) Commit(ctx context.Context, msg *broker.Message) error {
	return c.consumer.Commit(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
	})
}

func (c *ConsumerClient) Close() error {
	return c.consumer.Close()
}

func fromKafka(msg kafka.Message) *broker.Message {
	return &broker.Message{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
}
