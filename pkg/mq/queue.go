package mq

import (
	"context"
	"errors"
)

var ErrTopicClosed = errors.New("topic closed")

type MessageQueue interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Receive(ctx context.Context, topic string) ([]byte, error)
	CloseTopic(topic string) error
	Close() error
}
