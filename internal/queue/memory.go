package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("queue closed")

// HandlerFunc processes one encoded message body.
type HandlerFunc func(ctx context.Context, body []byte) error

// MemoryQueue is an in-process queue used when no SQS queue is configured.
// Messages are encoded on Send so consumers go through the same decode path
// as SQS bodies. Failed messages are logged and dropped.
type MemoryQueue struct {
	ch     chan []byte
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue buffering up to size messages.
func NewMemoryQueue(size int, logger *zap.Logger) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{ch: make(chan []byte, size), logger: logger}
}

// Send enqueues msg, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes messages with at most concurrency handlers in flight until ctx
// is done or the queue is closed and drained.
func (q *MemoryQueue) Run(ctx context.Context, concurrency int, handle HandlerFunc) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case body, ok := <-q.ch:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(body []byte) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := handle(ctx, body); err != nil {
					q.logger.Warn("queue.message_failed", zap.Error(err))
				}
			}(body)
		}
	}
}

// Close stops accepting messages. Buffered messages are still delivered to Run.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

var _ Client = (*MemoryQueue)(nil)
