package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resume-matcher/internal/queue"
	"resume-matcher/internal/shared/metrics"
)

type fakeSQS struct {
	deleted []string
	err     error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	err error
	ids []string
}

func (f *fakeProcessor) Process(ctx context.Context, taskID string) error {
	f.ids = append(f.ids, taskID)
	return f.err
}

func sqsMessage(id, body string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String("m-" + id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "2"},
	}
}

func taskBody(t *testing.T, taskID string) string {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{TaskID: taskID, RequestID: "req-" + taskID, Version: queue.MessageVersion})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	metrics.Reset()
	client := &fakeSQS{}
	proc := &fakeProcessor{}

	handleMessage(context.Background(), client, "queue", proc, sqsMessage("1", taskBody(t, "task-1")))

	if len(client.deleted) != 1 || client.deleted[0] != "r-1" {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
	if len(proc.ids) != 1 || proc.ids[0] != "task-1" {
		t.Fatalf("expected task-1 processed, got %v", proc.ids)
	}
	if !strings.Contains(metrics.Render(), "queue_messages_completed_total 1") {
		t.Fatalf("expected completed counter")
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	metrics.Reset()
	client := &fakeSQS{}
	proc := &fakeProcessor{err: errors.New("db unavailable")}

	handleMessage(context.Background(), client, "queue", proc, sqsMessage("2", taskBody(t, "task-2")))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
	if !strings.Contains(metrics.Render(), "queue_messages_failed_total 1") {
		t.Fatalf("expected failed counter")
	}
}

func TestWorkerDropsUnrecoverableMessages(t *testing.T) {
	metrics.Reset()
	proc := &fakeProcessor{}
	for name, body := range map[string]string{
		"empty":   "",
		"invalid": "{bad-json",
		"no id":   `{"requestId":"req-9"}`,
	} {
		client := &fakeSQS{}
		handleMessage(context.Background(), client, "queue", proc, sqsMessage(name, body))
		if len(client.deleted) != 1 {
			t.Fatalf("%s: expected delete, got %d", name, len(client.deleted))
		}
	}
	if len(proc.ids) != 0 {
		t.Fatalf("unrecoverable messages must not be processed: %v", proc.ids)
	}
	if !strings.Contains(metrics.Render(), "queue_messages_unrecoverable_total 3") {
		t.Fatalf("expected unrecoverable counter")
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqsMessage("x", "")); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
