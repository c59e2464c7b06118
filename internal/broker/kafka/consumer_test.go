package kafka

import (
	"testing"

	kafka "github.com/segmentio/kafka-go"
)

func TestFromKafka(t *testing.T) {
	msg := fromKafka(kafka.Message{
		Topic:     "image-thumbnails",
		Partition: 3,
		Offset:    42,
		Key:       []byte("image-id"),
		Value:     []byte(`{"image_id":"image-id"}`),
	})

	if msg.Topic != "image-thumbnails" || msg.Partition != 3 || msg.Offset != 42 {
		t.Errorf("position = %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if string(msg.Key) != "image-id" || string(msg.Value) != `{"image_id":"image-id"}` {
		t.Errorf("key = %q value = %q", msg.Key, msg.Value)
	}
}
