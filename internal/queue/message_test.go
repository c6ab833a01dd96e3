package queue

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		TaskID:     "task-123",
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if !strings.Contains(string(payload), `"taskId":"task-123"`) {
		t.Fatalf("unexpected wire format: %s", payload)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSClientSend(t *testing.T) {
	sender := &fakeSender{}
	client := NewSQSClientWith(sender, "https://sqs.local/queue")

	if err := client.Send(context.Background(), Message{TaskID: "t-1", Version: MessageVersion}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.inputs))
	}
	if got := aws.ToString(sender.inputs[0].QueueUrl); got != "https://sqs.local/queue" {
		t.Fatalf("unexpected queue url %q", got)
	}
	msg, err := DecodeMessage([]byte(aws.ToString(sender.inputs[0].MessageBody)))
	if err != nil || msg.TaskID != "t-1" {
		t.Fatalf("unexpected body: %+v err=%v", msg, err)
	}

	sender.err = errors.New("throttled")
	if err := client.Send(context.Background(), Message{TaskID: "t-2"}); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestNewSQSClientRequiresURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), "us-east-1", " "); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}
