package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryQueueDeliversEncodedMessages(t *testing.T) {
	q := NewMemoryQueue(4, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Send(ctx, Message{TaskID: id, Version: MessageVersion}); err != nil {
			t.Fatalf("Send %s: %v", id, err)
		}
	}
	q.Close()

	var mu sync.Mutex
	var got []string
	q.Run(ctx, 2, func(ctx context.Context, body []byte) error {
		msg, err := DecodeMessage(body)
		if err != nil {
			return err
		}
		mu.Lock()
		got = append(got, msg.TaskID)
		mu.Unlock()
		return nil
	})

	sort.Strings(got)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestMemoryQueueBoundsConcurrency(t *testing.T) {
	q := NewMemoryQueue(8, nil)
	for i := 0; i < 6; i++ {
		_ = q.Send(context.Background(), Message{TaskID: "t"})
	}
	q.Close()

	var inFlight, peak atomic.Int32
	q.Run(context.Background(), 2, func(ctx context.Context, body []byte) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return errors.New("handler errors are logged, not fatal")
	})

	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent handlers, saw %d", peak.Load())
	}
}

func TestMemoryQueueSendAfterClose(t *testing.T) {
	q := NewMemoryQueue(1, nil)
	q.Close()
	q.Close()
	if err := q.Send(context.Background(), Message{TaskID: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryQueueRunStopsOnCancel(t *testing.T) {
	q := NewMemoryQueue(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx, 1, func(context.Context, []byte) error { return nil })
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
