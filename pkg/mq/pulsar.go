package mq

import (
	"context"
	"strings"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
)

// PulsarQueue is the broker-backed MessageQueue used when analysis work
// must survive process restarts. Producers and consumers are created
// lazily per topic and cached.
type PulsarQueue struct {
	client    pulsar.Client
	mu        sync.Mutex
	producers map[string]pulsar.Producer
	consumers map[string]pulsar.Consumer
}

func NewPulsarQueue(url string) (*PulsarQueue, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: url})
	if err != nil {
		return nil, err
	}

	return &PulsarQueue{
		client:    client,
		producers: make(map[string]pulsar.Producer),
		consumers: make(map[string]pulsar.Consumer),
	}, nil
}

func (q *PulsarQueue) Publish(ctx context.Context, topic string, message []byte) error {
	producer, err := q.getProducer(topic)
	if err != nil {
		return err
	}

	_, err = producer.Send(ctx, &pulsar.ProducerMessage{Payload: message})
	return err
}

func (q *PulsarQueue) Receive(ctx context.Context, topic string) ([]byte, error) {
	consumer, err := q.getConsumer(topic)
	if err != nil {
		return nil, err
	}

	msg, err := consumer.Receive(ctx)
	if err != nil {
		return nil, err
	}

	if err := consumer.Ack(msg); err != nil {
		return nil, err
	}

	return msg.Payload(), nil
}

func (q *PulsarQueue) CloseTopic(topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if producer, ok := q.producers[topic]; ok {
		producer.Close()
		delete(q.producers, topic)
	}
	if consumer, ok := q.consumers[topic]; ok {
		consumer.Close()
		delete(q.consumers, topic)
	}

	return nil
}

func (q *PulsarQueue) Close() error {
	q.client.Close()
	return nil
}

func (q *PulsarQueue) getProducer(topic string) (pulsar.Producer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if producer, ok := q.producers[topic]; ok {
		return producer, nil
	}

	producer, err := q.client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, err
	}

	q.producers[topic] = producer
	return producer, nil
}

func (q *PulsarQueue) getConsumer(topic string) (pulsar.Consumer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if consumer, ok := q.consumers[topic]; ok {
		return consumer, nil
	}

	consumer, err := q.client.Subscribe(pulsar.ConsumerOptions{
		Topic:            topic,
		Type:             pulsar.Exclusive,
		SubscriptionName: strings.ReplaceAll(topic, "/", "-"),
	})
	if err != nil {
		return nil, err
	}

	q.consumers[topic] = consumer
	return consumer, nil
}
