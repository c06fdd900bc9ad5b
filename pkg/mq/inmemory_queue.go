package mq

import (
	"context"
	"fmt"
	"sync"
)

// topicChannel pairs the message buffer with a close signal. The buffer
// itself is never closed, so a publisher racing CloseTopic cannot hit a
// send on a closed channel.
type topicChannel struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (t *topicChannel) close() {
	t.once.Do(func() { close(t.done) })
}

type InMemoryQueue struct {
	topics  sync.Map
	closeCh chan struct{}
	once    sync.Once
	maxSize int
}

func NewInMemoryQueue(maxSize int) *InMemoryQueue {
	if maxSize <= 0 {
		maxSize = 1
	}

	return &InMemoryQueue{
		closeCh: make(chan struct{}),
		maxSize: maxSize,
	}
}

func (q *InMemoryQueue) topic(name string) *topicChannel {
	value, ok := q.topics.Load(name)
	if !ok {
		value, _ = q.topics.LoadOrStore(name, &topicChannel{
			ch:   make(chan []byte, q.maxSize),
			done: make(chan struct{}),
		})
	}
	return value.(*topicChannel)
}

func (q *InMemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	t := q.topic(topic)

	select {
	case <-t.done:
		return ErrTopicClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeCh:
		return fmt.Errorf("queue closed")
	case <-t.done:
		return ErrTopicClosed
	case t.ch <- message:
		return nil
	}
}

func (q *InMemoryQueue) Receive(ctx context.Context, topic string) ([]byte, error) {
	t := q.topic(topic)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closeCh:
		return nil, ErrTopicClosed
	case <-t.done:
		// Drain messages published before the close.
		select {
		case data := <-t.ch:
			return data, nil
		default:
			return nil, ErrTopicClosed
		}
	case data := <-t.ch:
		return data, nil
	}
}

func (q *InMemoryQueue) CloseTopic(topic string) error {
	value, ok := q.topics.Load(topic)
	if !ok {
		return fmt.Errorf("topic not found")
	}

	q.topics.Delete(topic)
	value.(*topicChannel).close()
	return nil
}

func (q *InMemoryQueue) Close() error {
	q.once.Do(func() {
		close(q.closeCh)
	})
	return nil
}
