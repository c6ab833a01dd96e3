package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resume-matcher/internal/bootstrap"
	"resume-matcher/internal/shared/config"
	"resume-matcher/internal/shared/metrics"
	"resume-matcher/internal/shared/telemetry"
	"resume-matcher/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Printf("logger config: %v", err)
	}
	app, initErr = bootstrap.Build(context.Background(), cfg)
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, app.Tasks, event), nil
}

// handleBatch reports only retryable records as failures; malformed ones are
// acknowledged so they leave the queue.
func handleBatch(ctx context.Context, processor workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncMessagesReceived()
		err := workerproc.HandleMessage(ctx, processor, record.Body)
		switch {
		case err == nil:
			metrics.IncMessagesCompleted()
		case workerproc.Unrecoverable(err):
			metrics.IncMessagesUnrecoverable()
			meta := workerproc.ComputeMeta(record.Body)
			telemetry.Error("worker.task.dropped", map[string]any{
				"sqs_message_id": record.MessageId,
				"body_len":       meta.BodyLen,
				"body_sha256":    meta.BodySHA,
				"error":          err.Error(),
			})
		default:
			metrics.IncMessagesFailed()
			telemetry.Error("worker.task.failed", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
