package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"resume-matcher/internal/queue"
	"resume-matcher/internal/shared/metrics"
	"resume-matcher/internal/shared/telemetry"
	"resume-matcher/internal/tasks"
)

// Processor runs one queued task to a terminal state.
type Processor interface {
	Process(ctx context.Context, taskID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingTaskID indicates a message without a task id.
type ErrMissingTaskID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingTaskID) Error() string { return "missing task id" }

// ErrProcess indicates processing failed after successful parsing. The
// message should be retried.
type ErrProcess struct {
	TaskID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process task"
	}
	return "process task: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message can never succeed and
// should be dropped instead of redelivered.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingTaskID
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.TaskID) == "" {
		return msg, meta, ErrMissingTaskID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, processor Processor, body string) error {
	if processor == nil {
		return errors.New("task processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(msg.TaskID) == "" {
		return ErrMissingTaskID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := tasks.WithRequestID(ctx, msg.RequestID)
	if err := processor.Process(ctxWithRequest, msg.TaskID); err != nil {
		return ErrProcess{TaskID: msg.TaskID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// QueueHandler adapts processor to the in-process queue consumer and keeps
// the queue counters the SQS worker keeps.
func QueueHandler(processor Processor) queue.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		metrics.IncMessagesReceived()
		err := HandleMessage(ctx, processor, string(body))
		switch {
		case err == nil:
			metrics.IncMessagesCompleted()
		case Unrecoverable(err):
			metrics.IncMessagesUnrecoverable()
			meta := ComputeMeta(string(body))
			telemetry.Error("worker.message_dropped", map[string]any{
				"body_len":    meta.BodyLen,
				"body_sha256": meta.BodySHA,
				"error":       err.Error(),
			})
		default:
			metrics.IncMessagesFailed()
		}
		return err
	}
}
