package emitter

import (
	"fmt"
	"strings"
)

// hostnameSentinel is the legacy host marker used by collector metric tuples:
// a host of the form "=<key>" means "take the real host from this point's own
// tags under <key>". The sentinel format is defined only here.
const hostnameSentinel = "=hostname"

var tagSanitizer = strings.NewReplacer("[", "", "]", "", `"`, "")

// sanitizeTag strips structurally unsafe characters from one tag token.
// Params: s raw tag key or value.
// Returns: token without `[`, `]`, `"` characters.
func sanitizeTag(s string) string {
	return tagSanitizer.Replace(s)
}

// resolveHost applies the "=<key>" host substitution rule.
// Params: host raw host field; tags per-metric tag set.
// Returns: final host plus the promoted tag key ("" when no substitution);
// the promoted key must be excluded from the encoded tag fragment.
func resolveHost(host string, tags map[string]any) (string, string) {
	if len(tags) == 0 || len(host) < 2 || host[0] != '=' {
		return host, ""
	}
	key := host[1:]
	value, ok := tags[key]
	if !ok {
		return host, ""
	}
	if s, isString := value.(string); isString {
		return s, key
	}
	return fmt.Sprint(value), key
}

// extractHostTags reads host-tags.system from one collector payload into
// engine state: every raw tag string is retained as a source tag, and
// colon-delimited tags become cached point tags with both sides sanitized.
// Params: payload decoded collector document.
// Returns: none; payloads without host-tags leave cached state untouched.
func (e *Emitter) extractHostTags(payload map[string]any) {
	hostTags, ok := payload["host-tags"].(map[string]any)
	if !ok {
		return
	}
	system, ok := hostTags["system"].([]any)
	if !ok {
		return
	}

	for _, raw := range system {
		tag, isString := raw.(string)
		if !isString {
			continue
		}
		e.sourceTags = append(e.sourceTags, tag)

		key, value, found := strings.Cut(tag, ":")
		if !found {
			continue
		}
		e.pointTags[sanitizeTag(key)] = sanitizeTag(value)
	}
}

// extractMetaTags caches configured meta keys from one collector payload.
// Values are cached as decoded; non-string entries are dropped at encode
// time, not here.
// Params: payload decoded collector document.
// Returns: none; only keys named by the meta-tag configuration are cached,
// and payloads without a meta section leave cached state untouched.
func (e *Emitter) extractMetaTags(payload map[string]any) {
	meta, ok := payload["meta"].(map[string]any)
	if !ok {
		return
	}

	for _, key := range e.metaTags {
		if value, present := meta[key]; present {
			e.pointTags[key] = value
		}
	}
}
