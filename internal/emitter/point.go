package emitter

import "fmt"

// Point is one extracted metric observation before line encoding.
// Params: Wavefront line fields plus per-metric tags.
// Returns: transient observation entity, never persisted.
type Point struct {
	Name      string
	Value     any
	Timestamp int64
	Host      string
	Tags      map[string]any
}

// payloadKind classifies one inbound agent payload by shape.
// Params: none.
// Returns: enum discriminator consumed by the dispatch switch.
type payloadKind int

const (
	// kindSeries is the flat dogstatsd metric-series format.
	kindSeries payloadKind = iota
	// kindCollector is the nested system-collector snapshot format.
	kindCollector
)

// classifyPayload inspects payload shape once and returns its kind.
// Params: payload decoded JSON document.
// Returns: kindSeries when a series key is present, kindCollector otherwise.
func classifyPayload(payload map[string]any) payloadKind {
	if _, ok := payload["series"]; ok {
		return kindSeries
	}
	return kindCollector
}

// epochSeconds converts a decoded JSON timestamp into integer epoch seconds.
// Params: raw timestamp value; fractional seconds are truncated.
// Returns: epoch seconds or error for non-numeric values.
func epochSeconds(raw any) (int64, error) {
	switch ts := raw.(type) {
	case float64:
		return int64(ts), nil
	case int64:
		return ts, nil
	case int:
		return int64(ts), nil
	default:
		return 0, fmt.Errorf("timestamp must be numeric, got %T", raw)
	}
}
