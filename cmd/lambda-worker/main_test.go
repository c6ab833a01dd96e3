package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"resume-matcher/internal/queue"
)

type stubProcessor struct {
	fail map[string]bool
}

func (s stubProcessor) Process(ctx context.Context, taskID string) error {
	if s.fail[taskID] {
		return errors.New("transient")
	}
	return nil
}

func record(t *testing.T, id, taskID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{TaskID: taskID})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestHandleBatchReportsOnlyRetryableFailures(t *testing.T) {
	event := events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m1", "ok"),
		record(t, "m2", "flaky"),
		{MessageId: "m3", Body: "{garbage"},
		{MessageId: "m4", Body: ""},
	}}

	resp := handleBatch(context.Background(), stubProcessor{fail: map[string]bool{"flaky": true}}, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Fatalf("expected only m2 to be retried, got %+v", resp.BatchItemFailures)
	}
}
