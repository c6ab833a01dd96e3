package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	taskSubmittedTotal atomic.Uint64
	taskStartedTotal   atomic.Uint64
	taskSucceededTotal atomic.Uint64
	taskFailedTotal    atomic.Uint64
	taskRevokedTotal   atomic.Uint64

	messagesReceivedTotal      atomic.Uint64
	messagesCompletedTotal     atomic.Uint64
	messagesFailedTotal        atomic.Uint64
	messagesUnrecoverableTotal atomic.Uint64

	sourceRequests = newLabeledCounter("source", "outcome")
	postingsTotal  = newLabeledCounter("source")
	stageTotal     = newLabeledCounter("stage", "outcome")

	taskDuration   = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
	sourceDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncTaskSubmitted counts a task accepted by the API.
func IncTaskSubmitted() { taskSubmittedTotal.Add(1) }

// IncTaskStarted counts a task picked up for processing.
func IncTaskStarted() { taskStartedTotal.Add(1) }

// IncTaskSucceeded counts a task reaching SUCCESS.
func IncTaskSucceeded() { taskSucceededTotal.Add(1) }

// IncTaskFailed counts a task reaching FAILURE.
func IncTaskFailed() { taskFailedTotal.Add(1) }

// IncTaskRevoked counts a cancelled task.
func IncTaskRevoked() { taskRevokedTotal.Add(1) }

// IncMessagesReceived counts queue messages pulled by the worker.
func IncMessagesReceived() { messagesReceivedTotal.Add(1) }

// IncMessagesCompleted counts queue messages processed and deleted.
func IncMessagesCompleted() { messagesCompletedTotal.Add(1) }

// IncMessagesFailed counts queue messages left for redelivery.
func IncMessagesFailed() { messagesFailedTotal.Add(1) }

// IncMessagesUnrecoverable counts malformed queue messages that were dropped.
func IncMessagesUnrecoverable() { messagesUnrecoverableTotal.Add(1) }

// IncSourceRequest counts one source call by outcome (ok, error, timeout).
func IncSourceRequest(source, outcome string) {
	sourceRequests.Inc(source, outcome)
}

// AddPostings counts postings returned by a source.
func AddPostings(source string, n int) {
	if n <= 0 {
		return
	}
	postingsTotal.Add(uint64(n), source)
}

// IncStage counts a pipeline stage by outcome (entered, failed).
func IncStage(stage, outcome string) {
	stageTotal.Inc(stage, outcome)
}

// ObserveTaskDurationMs records a pipeline run duration in milliseconds.
func ObserveTaskDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	taskDuration.Observe(value)
}

// ObserveSourceDurationMs records a single source call duration in milliseconds.
func ObserveSourceDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	sourceDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "task_submitted_total", "Total match tasks submitted", taskSubmittedTotal.Load())
	writeCounter(&buf, "task_started_total", "Total match tasks started", taskStartedTotal.Load())
	writeCounter(&buf, "task_succeeded_total", "Total match tasks succeeded", taskSucceededTotal.Load())
	writeCounter(&buf, "task_failed_total", "Total match tasks failed", taskFailedTotal.Load())
	writeCounter(&buf, "task_revoked_total", "Total match tasks cancelled", taskRevokedTotal.Load())
	writeCounter(&buf, "queue_messages_received_total", "Queue messages received", messagesReceivedTotal.Load())
	writeCounter(&buf, "queue_messages_completed_total", "Queue messages completed", messagesCompletedTotal.Load())
	writeCounter(&buf, "queue_messages_failed_total", "Queue messages failed", messagesFailedTotal.Load())
	writeCounter(&buf, "queue_messages_unrecoverable_total", "Queue messages dropped as unrecoverable", messagesUnrecoverableTotal.Load())
	writeLabeledCounter(&buf, "source_requests_total", "Job source calls by outcome", sourceRequests)
	writeLabeledCounter(&buf, "source_postings_total", "Postings returned per source", postingsTotal)
	writeLabeledCounter(&buf, "pipeline_stage_total", "Pipeline stages by outcome", stageTotal)
	writeHistogram(&buf, "task_duration_ms", "Pipeline duration in milliseconds", taskDuration.Snapshot())
	writeHistogram(&buf, "source_duration_ms", "Job source call duration in milliseconds", sourceDuration.Snapshot())
	return buf.String()
}

// Reset zeroes every metric. Intended for tests.
func Reset() {
	for _, c := range []*atomic.Uint64{
		&taskSubmittedTotal, &taskStartedTotal, &taskSucceededTotal, &taskFailedTotal, &taskRevokedTotal,
		&messagesReceivedTotal, &messagesCompletedTotal, &messagesFailedTotal, &messagesUnrecoverableTotal,
	} {
		c.Store(0)
	}
	sourceRequests.reset()
	postingsTotal.reset()
	stageTotal.reset()
	taskDuration.reset()
	sourceDuration.reset()
}

type labeledCounter struct {
	mu     sync.Mutex
	labels []string
	values map[string]uint64
}

func newLabeledCounter(labels ...string) *labeledCounter {
	return &labeledCounter{labels: labels, values: make(map[string]uint64)}
}

func (c *labeledCounter) Inc(values ...string) {
	c.Add(1, values...)
}

func (c *labeledCounter) Add(n uint64, values ...string) {
	key := strings.Join(values, "\x00")
	c.mu.Lock()
	c.values[key] += n
	c.mu.Unlock()
}

func (c *labeledCounter) reset() {
	c.mu.Lock()
	c.values = make(map[string]uint64)
	c.mu.Unlock()
}

func (c *labeledCounter) snapshot() ([]string, map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.values))
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		keys = append(keys, k)
		out[k] = v
	}
	sort.Strings(keys)
	return keys, out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func (h *histogram) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts = make([]uint64, len(h.buckets))
	h.sum = 0
	h.count = 0
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help string, c *labeledCounter) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys, values := c.snapshot()
	for _, key := range keys {
		parts := strings.Split(key, "\x00")
		pairs := make([]string, 0, len(c.labels))
		for i, label := range c.labels {
			v := ""
			if i < len(parts) {
				v = parts[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, v))
		}
		fmt.Fprintf(buf, "%s{%s} %d\n", name, strings.Join(pairs, ","), values[key])
	}
}

// writeHistogram emits cumulative buckets; Observe stores per-bucket counts.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
