package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"salesmart/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func testBackend(t *testing.T, fs *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour, // keep the loop out of the way
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func contains(s []string, want string) bool {
	for _, v := range s {
		if v == want {
			return true
		}
	}
	return false
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestEncodeSeriesRoundTrip verifies key encoding/decoding and label sorting.
func TestEncodeSeriesRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		labels metrics.Labels
		want   string
	}{
		{name: "no_labels", metric: "etl_rows_loaded_total", labels: nil, want: "etl_rows_loaded_total"},
		{name: "one_label", metric: "m", labels: metrics.Labels{"source": "users"}, want: "m|source:users"},
		{name: "labels_sorted", metric: "m", labels: metrics.Labels{"b": "2", "a": "1"}, want: "m|a:1|b:2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := encodeSeries(tc.metric, tc.labels)
			if k != tc.want {
				t.Fatalf("encodeSeries()=%q, want %q", k, tc.want)
			}
			name, tags := decodeSeries(k)
			if name != tc.metric {
				t.Fatalf("decodeSeries name=%q, want %q", name, tc.metric)
			}
			if len(tags) != len(tc.labels) {
				t.Fatalf("decodeSeries tags=%v, want %d entries", tags, len(tc.labels))
			}
		})
	}
}

// TestNewBackend_Defaults verifies defaults and initialization behavior
// without real HTTP.
func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName:    "", // should default
		FlushEvery: 0,  // should default
		Tags:       []string{"service:salesmart"},
		submitter:  fs,
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:etl") {
		t.Fatalf("baseTags missing job:etl: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:salesmart") {
		t.Fatalf("baseTags missing service:salesmart: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestIncCounterAccumulates verifies counter buffering, including that
// non-positive deltas are dropped.
func TestIncCounterAccumulates(t *testing.T) {
	fs := &fakeSubmitter{}
	b := testBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("etl_rows_loaded_total", 2, metrics.Labels{"source": "users"})
	b.IncCounter("etl_rows_loaded_total", 3, metrics.Labels{"source": "users"})
	b.IncCounter("etl_rows_loaded_total", 0, metrics.Labels{"source": "users"})
	b.IncCounter("etl_rows_loaded_total", -1, metrics.Labels{"source": "users"})

	b.mu.Lock()
	got := b.counters["etl_rows_loaded_total|source:users"]
	b.mu.Unlock()
	if got != 5 {
		t.Fatalf("buffered counter=%v, want 5", got)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics once
// and resets the buffer.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := testBackend(t, fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("etl_rows_loaded_total", 2, metrics.Labels{"source": "users"})
	b.IncCounter("etl_rows_written_total", 3, metrics.Labels{"table": "dim_user"})
	b.IncCounter("etl_duplicates_removed_total", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}

	b.mu.Lock()
	buffered := len(b.counters)
	b.mu.Unlock()
	if buffered != 0 {
		t.Fatalf("buffer not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	if len(payload.Series) != 3 {
		t.Fatalf("series=%d, want 3", len(payload.Series))
	}
	for _, s := range payload.Series {
		if s.Type == nil || *s.Type != datadogV2.METRICINTAKETYPE_COUNT {
			t.Fatalf("series %q type=%v, want COUNT", s.Metric, s.Type)
		}
		if !contains(s.Tags, "job:job1") {
			t.Fatalf("series %q missing job tag; tags=%v", s.Metric, s.Tags)
		}
		if len(s.Points) != 1 || s.Points[0].Timestamp == nil || *s.Points[0].Timestamp != 1000 {
			t.Fatalf("series %q points=%v, want one point at t=1000", s.Metric, s.Points)
		}
	}
}

// TestFlush_NoDataDoesNotSubmit verifies an empty buffer produces no
// submission at all.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := testBackend(t, fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submit calls=%d, want 0", fs.count())
	}
}

// TestFlush_SubmitError verifies submit failures surface as errors and do
// not panic.
func TestFlush_SubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("intake down")}
	b := testBackend(t, fs)
	defer func() {
		// Close flushes again; drain the injected error first.
		fs.mu.Lock()
		fs.err = nil
		fs.mu.Unlock()
		_ = b.Close()
	}()

	b.IncCounter("etl_rows_loaded_total", 1, nil)
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
}

// TestClose_StopsLoopAndFlushes verifies Close drains the loop goroutine
// and performs a final submission of whatever is buffered.
func TestClose_StopsLoopAndFlushes(t *testing.T) {
	fs := &fakeSubmitter{}
	b := testBackend(t, fs)

	b.IncCounter("etl_rows_loaded_total", 4, metrics.Labels{"source": "products"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1 final flush", fs.count())
	}

	select {
	case <-b.doneCh:
	default:
		t.Fatalf("loop goroutine still running after Close")
	}
}

// TestBuildSeriesDeterministicOrder verifies series ordering is stable
// across flushes, so payload diffs stay readable.
func TestBuildSeriesDeterministicOrder(t *testing.T) {
	fs := &fakeSubmitter{}
	b := testBackend(t, fs)
	defer func() { _ = b.Close() }()

	snap := map[string]float64{
		"b_metric": 1,
		"a_metric": 2,
	}
	s1 := b.buildSeries(snap, 1000)
	s2 := b.buildSeries(snap, 1000)
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("buildSeries not deterministic")
	}
	if s1[0].Metric != "a_metric" {
		t.Fatalf("series[0]=%q, want a_metric first", s1[0].Metric)
	}
}

// TestParseTagsCSV verifies CSV tag parsing.
func TestParseTagsCSV(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "whitespace_only", in: "  \t", want: nil},
		{name: "simple", in: "team:data,svc:etl", want: []string{"team:data", "svc:etl"}},
		{name: "trims_and_drops_empties", in: " team:data , ,svc:etl,", want: []string{"team:data", "svc:etl"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
