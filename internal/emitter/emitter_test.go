package emitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureSender records sent lines and close calls.
// Params: none.
// Returns: in-memory LineSender for dispatcher tests.
type captureSender struct {
	lines  []string
	closed int
	fail   error
}

// Send records one line or returns the configured failure.
// Params: line encoded protocol line.
// Returns: configured failure error or nil.
func (s *captureSender) Send(line string) error {
	if s.fail != nil {
		return s.fail
	}
	s.lines = append(s.lines, line)
	return nil
}

// Close counts close calls.
// Params: none.
// Returns: nil.
func (s *captureSender) Close() error {
	s.closed++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmit_DryRunWritesLinesWithoutDialing(t *testing.T) {
	var out bytes.Buffer
	e := New(Config{ProxyHost: "proxy.example", DryRun: true, DryRunOutput: &out})
	e.dial = func(context.Context, string, time.Duration) (LineSender, error) {
		t.Fatalf("dry-run must never dial")
		return nil, nil
	}

	payload := map[string]any{
		"series": []any{
			map[string]any{
				"metric": "app.requests",
				"tags":   []any{"env:prod"},
				"host":   "h2",
				"points": []any{[]any{5.0, 42.0}},
			},
		},
	}

	if err := e.Emit(context.Background(), payload, testLogger()); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	got := strings.TrimRight(out.String(), "\n")
	if got != `app.requests 42 5 source="h2" "env"="prod"` {
		t.Fatalf("unexpected dry-run line: %q", got)
	}
}

// TestEmit_DryRunWithoutProxyHost verifies the proxy host stays required in
// dry-run mode: no work is performed and the misconfiguration is logged.
// Params: testing.T for assertions.
// Returns: none.
func TestEmit_DryRunWithoutProxyHost(t *testing.T) {
	var out bytes.Buffer
	var logged bytes.Buffer
	e := New(Config{DryRun: true, DryRunOutput: &out})
	logger := slog.New(slog.NewTextHandler(&logged, nil))

	payload := map[string]any{
		"series": []any{
			map[string]any{
				"metric": "m",
				"host":   "h",
				"points": []any{[]any{1.0, 2.0}},
			},
		},
	}

	err := e.Emit(context.Background(), payload, logger)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no emitted lines, got %q", out.String())
	}
	if !strings.Contains(logged.String(), "missing proxy host") {
		t.Fatalf("expected logged configuration error, got %q", logged.String())
	}
}

func TestEmit_MissingProxyHost(t *testing.T) {
	e := New(Config{})

	err := e.Emit(context.Background(), map[string]any{"series": []any{}}, testLogger())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEmit_ConnectFailureAbortsInvocation(t *testing.T) {
	e := New(Config{ProxyHost: "proxy.example"})

	dials := 0
	e.dial = func(_ context.Context, addr string, _ time.Duration) (LineSender, error) {
		dials++
		return nil, fmt.Errorf("dial proxy %s: connection refused", addr)
	}

	payload := map[string]any{
		"series": []any{
			map[string]any{
				"metric": "m",
				"host":   "h",
				"points": []any{[]any{1.0, 2.0}},
			},
		},
	}

	err := e.Emit(context.Background(), payload, testLogger())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if dials != 1 {
		t.Fatalf("unexpected dial count: %d", dials)
	}

	// the engine stays usable: the next invocation dials again
	sender := &captureSender{}
	e.dial = func(context.Context, string, time.Duration) (LineSender, error) {
		return sender, nil
	}
	if err := e.Emit(context.Background(), payload, testLogger()); err != nil {
		t.Fatalf("Emit after connect failure: %v", err)
	}
	if len(sender.lines) != 1 {
		t.Fatalf("unexpected line count: %d", len(sender.lines))
	}
	if sender.closed != 1 {
		t.Fatalf("transport must be closed exactly once, got %d", sender.closed)
	}
}

// TestEmit_ClosesTransportOnParseError verifies the guaranteed-cleanup path.
// Params: testing.T for assertions.
// Returns: none.
func TestEmit_ClosesTransportOnParseError(t *testing.T) {
	e := New(Config{ProxyHost: "proxy.example"})
	sender := &captureSender{}
	e.dial = func(context.Context, string, time.Duration) (LineSender, error) {
		return sender, nil
	}

	payload := map[string]any{
		"collection_timestamp": 100.0,
		// internalHostname missing
	}

	if err := e.Emit(context.Background(), payload, testLogger()); err == nil {
		t.Fatalf("expected parse error")
	}
	if sender.closed != 1 {
		t.Fatalf("transport must be closed on the error path, got %d closes", sender.closed)
	}
	if len(sender.lines) != 0 {
		t.Fatalf("no lines expected, got %d", len(sender.lines))
	}
}

// TestEmit_PointTagsPersistAcrossPayloads verifies the process-lifetime
// cached tag state: tags seen on payload A decorate lines from payload B.
// Params: testing.T for assertions.
// Returns: none.
func TestEmit_PointTagsPersistAcrossPayloads(t *testing.T) {
	var out bytes.Buffer
	e := New(Config{ProxyHost: "proxy.example", DryRun: true, DryRunOutput: &out, MetaTags: []string{"region"}})

	first := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"host-tags":            map[string]any{"system": []any{"env:prod"}},
		"meta":                 map[string]any{"region": "us-west"},
		"metrics":              []any{},
		"ioStats":              map[string]any{},
		"processes":            map[string]any{"processes": []any{}},
	}
	if err := e.Emit(context.Background(), first, testLogger()); err != nil {
		t.Fatalf("Emit first payload: %v", err)
	}

	out.Reset()
	second := map[string]any{
		"collection_timestamp": 200.0,
		"internalHostname":     "h1",
		"cpuIdle":              50.0,
		"metrics":              []any{},
		"ioStats":              map[string]any{},
		"processes":            map[string]any{"processes": []any{}},
	}
	if err := e.Emit(context.Background(), second, testLogger()); err != nil {
		t.Fatalf("Emit second payload: %v", err)
	}

	line := out.String()
	if !strings.Contains(line, `"env"="prod"`) {
		t.Fatalf("host tag from earlier payload missing: %q", line)
	}
	if !strings.Contains(line, `"region"="us-west"`) {
		t.Fatalf("meta tag from earlier payload missing: %q", line)
	}
}

func TestEmit_SeriesPayloadSkipsTagExtraction(t *testing.T) {
	var out bytes.Buffer
	e := New(Config{ProxyHost: "proxy.example", DryRun: true, DryRunOutput: &out})

	payload := map[string]any{
		"series":    []any{},
		"host-tags": map[string]any{"system": []any{"env:prod"}},
	}
	if err := e.Emit(context.Background(), payload, testLogger()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(e.PointTags()) != 0 {
		t.Fatalf("series payload must not populate point tags: %v", e.PointTags())
	}
}

func TestEmit_SendFailureStopsInvocation(t *testing.T) {
	e := New(Config{ProxyHost: "proxy.example"})
	sender := &captureSender{fail: errors.New("broken pipe")}
	e.dial = func(context.Context, string, time.Duration) (LineSender, error) {
		return sender, nil
	}

	payload := map[string]any{
		"series": []any{
			map[string]any{
				"metric": "m",
				"host":   "h",
				"points": []any{[]any{1.0, 2.0}, []any{2.0, 3.0}},
			},
		},
	}

	if err := e.Emit(context.Background(), payload, testLogger()); err == nil {
		t.Fatalf("expected send error")
	}
	if sender.closed != 1 {
		t.Fatalf("transport must still be closed, got %d closes", sender.closed)
	}
}
