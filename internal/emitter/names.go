package emitter

import (
	"strings"
	"unicode"
)

// dottedName converts a camel-case key into a dotted lowercase metric name.
// Params: key camel-case string (e.g. "memPhysFree").
// Returns: dotted form (e.g. "mem.phys.free"); each uppercase rune becomes
// "." plus its lowercase form, everything else passes through, including a
// leading uppercase letter which produces a leading dot.
func dottedName(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if unicode.IsUpper(r) {
			b.WriteByte('.')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
