package mq

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishReceive(t *testing.T) {
	q := NewInMemoryQueue(4)
	defer q.Close()

	ctx := context.Background()
	if err := q.Publish(ctx, "jobs", []byte("first")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := q.Publish(ctx, "jobs", []byte("second")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := q.Receive(ctx, "jobs")
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(got, []byte("first")) {
		t.Errorf("got %q, want first", got)
	}
}

func TestReceiveHonorsContext(t *testing.T) {
	q := NewInMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Receive(ctx, "empty"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestCloseTopicUnblocksReceivers(t *testing.T) {
	q := NewInMemoryQueue(1)
	defer q.Close()

	if err := q.Publish(context.Background(), "jobs", []byte("seed")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := q.Receive(context.Background(), "jobs"); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background(), "jobs")
		errc <- err
	}()

	// Give the receiver a moment to block on the empty topic.
	time.Sleep(10 * time.Millisecond)
	if err := q.CloseTopic("jobs"); err != nil {
		t.Fatalf("CloseTopic: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrTopicClosed) {
			t.Errorf("err = %v, want ErrTopicClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver did not unblock")
	}
}

func TestCloseTopicUnblocksPublishers(t *testing.T) {
	q := NewInMemoryQueue(1)
	defer q.Close()

	// Fill the buffer so the next publish blocks.
	if err := q.Publish(context.Background(), "jobs", []byte("seed")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- q.Publish(context.Background(), "jobs", []byte("stuck"))
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.CloseTopic("jobs"); err != nil {
		t.Fatalf("CloseTopic: %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, ErrTopicClosed) {
			t.Errorf("err = %v, want ErrTopicClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not unblock")
	}
}
