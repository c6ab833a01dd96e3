package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesCountersAndLabels(t *testing.T) {
	Reset()
	defer Reset()

	IncTaskSubmitted()
	IncTaskSucceeded()
	IncSourceRequest("remoteok", "ok")
	IncSourceRequest("remoteok", "ok")
	IncSourceRequest("weworkremotely", "timeout")
	AddPostings("remoteok", 3)

	out := Render()
	for _, want := range []string{
		"task_submitted_total 1",
		"task_succeeded_total 1",
		`source_requests_total{source="remoteok",outcome="ok"} 2`,
		`source_requests_total{source="weworkremotely",outcome="timeout"} 1`,
		`source_postings_total{source="remoteok"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	Reset()
	defer Reset()

	ObserveTaskDurationMs(100)
	ObserveTaskDurationMs(700)
	ObserveTaskDurationMs(-5)

	out := Render()
	for _, want := range []string{
		`task_duration_ms_bucket{le="250"} 2`,
		`task_duration_ms_bucket{le="1000"} 3`,
		`task_duration_ms_bucket{le="+Inf"} 3`,
		"task_duration_ms_count 3",
		"task_duration_ms_sum 800",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
