package media

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/media-scribe/internal/config"
)

func makeSegments(n int) []Segment {
	segments := make([]Segment, n)
	for i := range segments {
		segments[i] = Segment{Index: i, Path: "seg-" + strconv.Itoa(i)}
	}
	return segments
}

func TestPlanAssignmentsSevenSegmentsThreeWorkers(t *testing.T) {
	assignments := planAssignments(makeSegments(7), []string{"w1", "w2", "w3"})
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}

	sizes := []int{len(assignments[0].Segments), len(assignments[1].Segments), len(assignments[2].Segments)}
	expected := []int{3, 3, 1}
	for i, want := range expected {
		if sizes[i] != want {
			t.Fatalf("partition sizes = %v, want %v", sizes, expected)
		}
	}

	// Contiguous slices in pool order.
	if assignments[0].Segments[0].Index != 0 || assignments[1].Segments[0].Index != 3 || assignments[2].Segments[0].Index != 6 {
		t.Fatalf("partitions are not contiguous: %+v", assignments)
	}
}

func TestPlanAssignmentsMoreWorkersThanSegments(t *testing.T) {
	assignments := planAssignments(makeSegments(2), []string{"w1", "w2", "w3"})
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	if len(assignments[0].Segments) != 1 || len(assignments[1].Segments) != 1 || len(assignments[2].Segments) != 0 {
		t.Fatalf("unexpected partition sizes: %+v", assignments)
	}
}

func TestPlanAssignmentsEmpty(t *testing.T) {
	assignments := planAssignments(nil, []string{"w1", "w2"})
	for _, a := range assignments {
		if len(a.Segments) != 0 {
			t.Fatalf("expected empty partitions, got %+v", assignments)
		}
	}
}

func TestDispatchSegmentsPreservesOrder(t *testing.T) {
	worker := &stubWorker{
		fn: func(endpoint, segmentPath string) (string, error) {
			idx, _ := strconv.Atoi(strings.TrimPrefix(segmentPath, "seg-"))
			// Later segments finish first to shuffle completion order.
			time.Sleep(time.Duration(7-idx) * 5 * time.Millisecond)
			return "text" + strconv.Itoa(idx), nil
		},
	}
	svc := newTestService(t, nil, worker, nil)

	merged, failed, err := svc.dispatchSegments(context.Background(), makeSegments(7), nil)
	if err != nil {
		t.Fatalf("dispatchSegments returned error: %v", err)
	}
	if failed != 0 {
		t.Fatalf("expected 0 failed segments, got %d", failed)
	}
	want := "text0 text1 text2 text3 text4 text5 text6"
	if merged != want {
		t.Fatalf("merged = %q, want %q", merged, want)
	}
	if worker.callCount() != 7 {
		t.Fatalf("expected 7 worker calls, got %d", worker.callCount())
	}
}

func TestDispatchSegmentsNoSegments(t *testing.T) {
	worker := &stubWorker{}
	svc := newTestService(t, nil, worker, nil)

	merged, failed, err := svc.dispatchSegments(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("dispatchSegments returned error: %v", err)
	}
	if merged != "" || failed != 0 {
		t.Fatalf("expected empty result, got %q (%d failed)", merged, failed)
	}
	if worker.callCount() != 0 {
		t.Fatalf("expected no worker calls, got %d", worker.callCount())
	}
}

func TestDispatchSegmentsBestEffortKeepsPlaceholder(t *testing.T) {
	worker := &stubWorker{
		fn: func(endpoint, segmentPath string) (string, error) {
			if segmentPath == "seg-1" {
				return "", errors.New("worker down")
			}
			idx := strings.TrimPrefix(segmentPath, "seg-")
			return "text" + idx, nil
		},
	}
	svc := newTestService(t, nil, worker, nil)

	merged, failed, err := svc.dispatchSegments(context.Background(), makeSegments(3), nil)
	if err != nil {
		t.Fatalf("dispatchSegments returned error: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed segment, got %d", failed)
	}
	// The failed segment contributes an empty placeholder at its position.
	want := "text0  text2"
	if merged != want {
		t.Fatalf("merged = %q, want %q", merged, want)
	}
}

func TestDispatchSegmentsFailFast(t *testing.T) {
	cfg := testConfig(t)
	cfg.DispatchPolicy = config.DispatchFailFast
	worker := &stubWorker{
		fn: func(endpoint, segmentPath string) (string, error) {
			if segmentPath == "seg-2" {
				return "", errors.New("worker down")
			}
			return "ok", nil
		},
	}
	svc := newTestService(t, cfg, worker, nil)

	_, _, err := svc.dispatchSegments(context.Background(), makeSegments(5), nil)
	if err == nil {
		t.Fatal("expected error in fail-fast mode")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "WORKER_FAILED" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatchSegmentsProgressMonotonic(t *testing.T) {
	worker := &stubWorker{
		fn: func(endpoint, segmentPath string) (string, error) {
			return "x", nil
		},
	}
	svc := newTestService(t, nil, worker, nil)

	var percents []int
	_, _, err := svc.dispatchSegments(context.Background(), makeSegments(6), func(completed, total int) {
		percents = append(percents, 25+(60*completed)/total)
	})
	if err != nil {
		t.Fatalf("dispatchSegments returned error: %v", err)
	}
	if len(percents) != 6 {
		t.Fatalf("expected 6 progress callbacks, got %d", len(percents))
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress not monotonic: %v", percents)
		}
	}
	if percents[len(percents)-1] != 85 {
		t.Fatalf("final dispatch percent = %d, want 85", percents[len(percents)-1])
	}
}

func TestDispatchSegmentsStaticPartitionUsesAllWorkers(t *testing.T) {
	seen := make(map[string]bool)
	var mu sync.Mutex
	worker := &stubWorker{
		fn: func(endpoint, segmentPath string) (string, error) {
			mu.Lock()
			seen[endpoint] = true
			mu.Unlock()
			return "x", nil
		},
	}
	svc := newTestService(t, nil, worker, nil)

	if _, _, err := svc.dispatchSegments(context.Background(), makeSegments(7), nil); err != nil {
		t.Fatalf("dispatchSegments returned error: %v", err)
	}
	for _, endpoint := range []string{"http://w1", "http://w2", "http://w3"} {
		if !seen[endpoint] {
			t.Fatalf("endpoint %s received no calls: %v", endpoint, seen)
		}
	}
}
