package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"image-server/internal/config"
	"image-server/internal/domain"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type ProducerClient struct {
	producer *wbkafka.Producer
	retries  retry.Strategy
}

func NewProducerClient(cfg *config.Config) *ProducerClient {
	return &ProducerClient{
		producer: wbkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic),
		retries:  cfg.DefaultRetryStrategy(),
	}
}

func (p *ProducerClient) Send(ctx context.Context, key, value []byte) error {
	return p.producer.SendWithRetry(ctx, p.retries, key, value)
}

// Publish queues a thumbnail task keyed by image id, so tasks for one image
// land on the same partition in order.
func (p *ProducerClient) Publish(ctx context.Context, task *domain.ThumbnailTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal thumbnail task: %w", err)
	}

	if err := p.Send(ctx, []byte(task.ImageID), value); err != nil {
		return fmt.Errorf("failed to send thumbnail task: %w", err)
	}
	return nil
}

func (p *ProducerClient) Close() error {
	return p.producer.Close()
}
