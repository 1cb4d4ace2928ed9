package emitter

import (
	"strings"
	"testing"
)

// findPoint returns the first point with the given name.
// Params: t for fatal lookup failures; points extracted set; name wanted.
// Returns: matching point.
func findPoint(t *testing.T, points []Point, name string) Point {
	t.Helper()
	for _, p := range points {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("point %q not found in %d points", name, len(points))
	return Point{}
}

func TestCollectorPoints_MinimalSnapshot(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 1000.5,
		"internalHostname":     "h1",
		"cpuIdle":              99.3,
		"metrics":              []any{},
		"ioStats":              map[string]any{},
		"processes":            map[string]any{"processes": []any{1.0, 2.0, 3.0}},
	}

	points, err := collectorPoints(payload)
	if err != nil {
		t.Fatalf("collectorPoints: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("unexpected point count: got=%d want=2", len(points))
	}

	idle := findPoint(t, points, "system.cpu.idle")
	if idle.Value != 99.3 || idle.Host != "h1" || idle.Timestamp != 1000 {
		t.Fatalf("unexpected cpu.idle point: %+v", idle)
	}

	count := findPoint(t, points, "system.processes.count")
	if count.Value != 3 || count.Host != "h1" || count.Timestamp != 1000 {
		t.Fatalf("unexpected processes.count point: %+v", count)
	}
}

func TestCollectorPoints_GaugePrefixes(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"cpuGuest":             0.0,
		"memPhysFree":          2048.0,
		"uptime":               12345.0,
		"metrics":              []any{},
		"ioStats":              map[string]any{},
		"processes":            map[string]any{"processes": []any{}},
	}

	points, err := collectorPoints(payload)
	if err != nil {
		t.Fatalf("collectorPoints: %v", err)
	}

	findPoint(t, points, "system.cpu.guest")
	free := findPoint(t, points, "system.mem.phys.free")
	if free.Tags != nil {
		t.Fatalf("system gauges must be untagged: %+v", free)
	}
	for _, p := range points {
		if strings.Contains(p.Name, "uptime") {
			t.Fatalf("non cpu/mem key must not become a gauge: %+v", p)
		}
	}
}

// TestCollectorPoints_GenericMetrics verifies tuple extraction and host
// sentinel delegation.
// Params: testing.T for assertions.
// Returns: none.
func TestCollectorPoints_GenericMetrics(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"metrics": []any{
			[]any{"app.latency", 90.2, 1.5, map[string]any{"hostname": "box1", "env": "prod"}},
		},
		"ioStats":   map[string]any{},
		"processes": map[string]any{"processes": []any{}},
	}

	points, err := collectorPoints(payload)
	if err != nil {
		t.Fatalf("collectorPoints: %v", err)
	}

	p := findPoint(t, points, "app.latency")
	if p.Host != hostnameSentinel {
		t.Fatalf("expected sentinel host, got %q", p.Host)
	}
	if p.Timestamp != 90 {
		t.Fatalf("tuple timestamp must be truncated, got %d", p.Timestamp)
	}

	line, ok := encodeLine(p, nil)
	if !ok {
		t.Fatalf("expected a line")
	}
	if !strings.Contains(line, `source="box1"`) {
		t.Fatalf("sentinel not resolved at encode time: %q", line)
	}
}

func TestCollectorPoints_IOStats(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"metrics":              []any{},
		"ioStats": map[string]any{
			"sda": map[string]any{
				"%util": 1.5,
				"rkB/s": 250.0,
			},
		},
		"processes": map[string]any{"processes": []any{}},
	}

	points, err := collectorPoints(payload)
	if err != nil {
		t.Fatalf("collectorPoints: %v", err)
	}

	util := findPoint(t, points, "system.io.util")
	if util.Tags["disk"] != "sda" {
		t.Fatalf("missing disk tag: %+v", util)
	}
	read := findPoint(t, points, "system.io.rkB_s")
	if read.Value != 250.0 {
		t.Fatalf("unexpected rkB_s value: %+v", read)
	}
}

func TestCollectorPoints_LoadAverages(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"metrics":              []any{},
		"ioStats":              map[string]any{},
		"processes":            map[string]any{"processes": []any{}},
		"system.load.1":        0.42,
		"system.load.norm.5":   0.1,
	}

	points, err := collectorPoints(payload)
	if err != nil {
		t.Fatalf("collectorPoints: %v", err)
	}

	if p := findPoint(t, points, "system.load.1"); p.Value != 0.42 {
		t.Fatalf("unexpected load value: %+v", p)
	}
	findPoint(t, points, "system.load.norm.5")
	for _, p := range points {
		if p.Name == "system.load.15" {
			t.Fatalf("absent load key must be skipped silently")
		}
	}
}

func TestCollectorPoints_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"no timestamp", map[string]any{"internalHostname": "h1"}},
		{"no hostname", map[string]any{"collection_timestamp": 1.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := collectorPoints(tc.payload); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

// TestCollectorPoints_ShapeErrorKeepsEarlierPoints verifies gauges extracted
// before a malformed metrics array are preserved.
// Params: testing.T for assertions.
// Returns: none.
func TestCollectorPoints_ShapeErrorKeepsEarlierPoints(t *testing.T) {
	payload := map[string]any{
		"collection_timestamp": 100.0,
		"internalHostname":     "h1",
		"cpuIdle":              99.0,
		"metrics":              "not-an-array",
	}

	points, err := collectorPoints(payload)
	if err == nil {
		t.Fatalf("expected shape error")
	}
	if len(points) != 1 {
		t.Fatalf("expected the gauge extracted before the error, got %d points", len(points))
	}
	if points[0].Name != "system.cpu.idle" {
		t.Fatalf("unexpected surviving point: %+v", points[0])
	}
}
