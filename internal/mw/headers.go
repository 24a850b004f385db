package mw

import (
	"net/http"
	"sort"
	"strings"
)

const redacted = "***redacted***"

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
}

func redactHeader(k, v string) string {
	k = strings.ToLower(k)
	if sensitiveHeaders[k] || strings.HasPrefix(k, "x-api-key") {
		return redacted
	}
	return v
}

// flattenHeaders lowercases names, joins repeated values and redacts
// credentials. extra names are redacted as well.
func flattenHeaders(h http.Header, extra ...string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if len(vv) == 0 {
			continue
		}
		name := strings.ToLower(k)
		v := redactHeader(name, strings.Join(vv, ", "))
		for _, x := range extra {
			if strings.EqualFold(x, name) {
				v = redacted
			}
		}
		out[name] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
