package emitter

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeLine renders one point into a Wavefront protocol line:
// `<name> <value> <timestamp> source="<host>"<tag-fragment>`.
// Params: p extracted point; pointTags process-lifetime cached tags appended
// after per-metric tags (duplicate keys are tolerated, not deduplicated,
// non-string values dropped here).
// Returns: encoded line and true, or "" and false when the value is absent.
func encodeLine(p Point, pointTags map[string]any) (string, bool) {
	if p.Value == nil {
		return "", false
	}

	host, skipKey := resolveHost(p.Host, p.Tags)

	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte(' ')
	b.WriteString(formatValue(p.Value))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(p.Timestamp, 10))
	b.WriteString(` source="`)
	b.WriteString(host)
	b.WriteByte('"')

	for key, raw := range p.Tags {
		value, isString := raw.(string)
		if !isString || key == skipKey {
			continue
		}
		writeTagPair(&b, key, value)
	}
	for key, raw := range pointTags {
		value, isString := raw.(string)
		if !isString || key == skipKey {
			continue
		}
		writeTagPair(&b, key, value)
	}

	return b.String(), true
}

// writeTagPair appends one ` "<key>"="<value>"` fragment entry.
// Params: b destination builder; key/value string tag pair.
// Returns: none.
func writeTagPair(b *strings.Builder, key, value string) {
	b.WriteString(` "`)
	b.WriteString(key)
	b.WriteString(`"="`)
	b.WriteString(value)
	b.WriteByte('"')
}

// formatValue renders one metric value for the wire line.
// Params: v decoded JSON value.
// Returns: number without exponent notation for the common float64/int cases,
// fmt fallback otherwise.
func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return fmt.Sprint(v)
	}
}
