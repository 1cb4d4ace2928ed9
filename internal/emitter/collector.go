package emitter

import (
	"fmt"
	"strings"
)

// loadMetricNames are the well-known load-average keys passed through from
// the collector payload top level when present.
var loadMetricNames = []string{
	"system.load.1",
	"system.load.15",
	"system.load.5",
	"system.load.norm.1",
	"system.load.norm.15",
	"system.load.norm.5",
}

// collectorPoints walks one system-collector snapshot into metric points from
// five sources: cpu*/mem* top-level gauges, the generic metrics array,
// per-disk ioStats, the process count, and load averages.
// Params: payload decoded collector-shaped document with required
// collection_timestamp and internalHostname.
// Returns: extracted points; on a shape error the points extracted before the
// failing source are returned together with the error so the dispatcher can
// still deliver them.
func collectorPoints(payload map[string]any) ([]Point, error) {
	rawTS, ok := payload["collection_timestamp"]
	if !ok {
		return nil, fmt.Errorf("missing collection_timestamp")
	}
	ts, err := epochSeconds(rawTS)
	if err != nil {
		return nil, fmt.Errorf("collection_timestamp: %w", err)
	}
	host, ok := payload["internalHostname"].(string)
	if !ok {
		return nil, fmt.Errorf("missing internalHostname")
	}

	var points []Point

	// cpu* / mem* top-level gauges, untagged
	for key, value := range payload {
		if strings.HasPrefix(key, "cpu") || strings.HasPrefix(key, "mem") {
			points = append(points, Point{
				Name:      "system." + dottedName(key),
				Value:     value,
				Timestamp: ts,
				Host:      host,
			})
		}
	}

	// generic metrics array of (name, timestamp, value, tags) tuples; host
	// resolution is delegated to the tag substitution rule
	rawMetrics, ok := payload["metrics"].([]any)
	if !ok {
		return points, fmt.Errorf("metrics must be an array")
	}
	for idx, raw := range rawMetrics {
		tuple, isTuple := raw.([]any)
		if !isTuple || len(tuple) < 4 {
			return points, fmt.Errorf("metrics[%d]: must be a (name, timestamp, value, tags) tuple", idx)
		}
		name, hasName := tuple[0].(string)
		if !hasName {
			return points, fmt.Errorf("metrics[%d]: name must be a string", idx)
		}
		metricTS, tsErr := epochSeconds(tuple[1])
		if tsErr != nil {
			return points, fmt.Errorf("metrics[%d]: %w", idx, tsErr)
		}
		tags, _ := tuple[3].(map[string]any)
		points = append(points, Point{
			Name:      name,
			Value:     tuple[2],
			Timestamp: metricTS,
			Host:      hostnameSentinel,
			Tags:      tags,
		})
	}

	// per-disk IO stats
	ioStats, ok := payload["ioStats"].(map[string]any)
	if !ok {
		return points, fmt.Errorf("ioStats must be an object")
	}
	for diskName, rawStats := range ioStats {
		stats, isObject := rawStats.(map[string]any)
		if !isObject {
			return points, fmt.Errorf("ioStats.%s: must be an object", diskName)
		}
		for statName, value := range stats {
			cleaned := strings.ReplaceAll(strings.ReplaceAll(statName, "%", ""), "/", "_")
			points = append(points, Point{
				Name:      "system.io." + cleaned,
				Value:     value,
				Timestamp: ts,
				Host:      host,
				Tags:      map[string]any{"disk": diskName},
			})
		}
	}

	// process count; internalHostname is used instead of processes.host
	// because that field differs from internalHostname on ec2
	processes, ok := payload["processes"].(map[string]any)
	if !ok {
		return points, fmt.Errorf("processes must be an object")
	}
	processList, ok := processes["processes"].([]any)
	if !ok {
		return points, fmt.Errorf("processes.processes must be an array")
	}
	points = append(points, Point{
		Name:      "system.processes.count",
		Value:     len(processList),
		Timestamp: ts,
		Host:      host,
	})

	// well-known load averages, skipped silently when absent
	for _, name := range loadMetricNames {
		value, present := payload[name]
		if !present {
			continue
		}
		points = append(points, Point{
			Name:      name,
			Value:     value,
			Timestamp: ts,
			Host:      host,
		})
	}

	return points, nil
}
