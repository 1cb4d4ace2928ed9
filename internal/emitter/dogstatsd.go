package emitter

import (
	"fmt"
	"strings"
)

// seriesPoints walks one dogstatsd series payload into metric points.
// Params: payload decoded series-shaped document.
// Returns: one point per (timestamp, value) pair in record order; on a shape
// error the points extracted so far are returned together with the error so
// the dispatcher can still deliver them.
func seriesPoints(payload map[string]any) ([]Point, error) {
	rawSeries, ok := payload["series"].([]any)
	if !ok {
		return nil, fmt.Errorf("series must be an array")
	}

	points := make([]Point, 0, len(rawSeries))
	for idx, raw := range rawSeries {
		record, isObject := raw.(map[string]any)
		if !isObject {
			return points, fmt.Errorf("series[%d]: record must be an object", idx)
		}

		name, hasName := record["metric"].(string)
		if !hasName {
			return points, fmt.Errorf("series[%d]: missing metric name", idx)
		}

		tags := parseSeriesTags(record["tags"])
		host, _ := record["host"].(string)

		rawPoints, hasPoints := record["points"].([]any)
		if !hasPoints {
			return points, fmt.Errorf("series[%d]: missing points list", idx)
		}

		for pidx, rawPoint := range rawPoints {
			pair, isPair := rawPoint.([]any)
			if !isPair || len(pair) < 2 {
				return points, fmt.Errorf("series[%d].points[%d]: must be a [timestamp, value] pair", idx, pidx)
			}
			ts, err := epochSeconds(pair[0])
			if err != nil {
				return points, fmt.Errorf("series[%d].points[%d]: %w", idx, pidx, err)
			}
			points = append(points, Point{
				Name:      name,
				Value:     pair[1],
				Timestamp: ts,
				Host:      host,
				Tags:      tags,
			})
		}
	}

	return points, nil
}

// parseSeriesTags converts a series tag list into a tag set.
// Params: raw tags field (list of "key:value" tokens, possibly null).
// Returns: parsed tag set; each token is split once on the first colon, and
// tokens without a colon are malformed and skipped.
func parseSeriesTags(raw any) map[string]any {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	tags := make(map[string]any, len(list))
	for _, item := range list {
		token, isString := item.(string)
		if !isString {
			continue
		}
		key, value, found := strings.Cut(token, ":")
		if !found {
			continue
		}
		tags[key] = value
	}
	return tags
}
