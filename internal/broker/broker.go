package broker

import "context"

type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
}

type Producer interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// Consumer delivers messages to out until ctx is done. A message is
// redelivered after a restart unless it was committed.
type Consumer interface {
	Start(ctx context.Context, out chan<- *Message)
	Commit(ctx context.Context, msg *Message) error
	Close() error
}
