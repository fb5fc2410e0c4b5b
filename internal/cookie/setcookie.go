package cookie

import (
	"regexp"
	"strings"
)

// splitPattern matches a comma that begins a new cookie definition
// rather than separating an attribute like Expires, whose value itself
// contains commas (e.g. "Expires=Wed, 09 Jun 2021 10:18:14 GMT").
// A new definition starts with "<token>=", so we only split on a comma
// followed by optional whitespace and a bare attribute-name-looking
// token plus "=".
var splitPattern = regexp.MustCompile(`,(?:\s*)([A-Za-z0-9_-]+=)`)

// SplitSetCookie splits a combined Set-Cookie header value (as some
// proxies concatenate multiple Set-Cookie headers with commas) into
// its individual cookie strings. Required by proxy-fronted deployments
// per §4.B.
func SplitSetCookie(header string) []string {
	if header == "" {
		return nil
	}
	// reinsert the comma consumed by the lookahead-free split above
	marked := splitPattern.ReplaceAllString(header, ",\x00$1")
	parts := strings.Split(marked, ",\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Attr is a single Set-Cookie attribute (Name, Value, or a flag like
// Secure/HttpOnly).
type Attr struct {
	Key   string
	Value string
}

// ParseSetCookie parses one Set-Cookie string (as produced by
// SplitSetCookie) into its name, value, and attribute list, normalizing
// attribute keys to lower-case.
func ParseSetCookie(raw string) (name, value string, attrs []Attr) {
	segments := strings.Split(raw, ";")
	if len(segments) == 0 {
		return "", "", nil
	}
	first := strings.SplitN(strings.TrimSpace(segments[0]), "=", 2)
	name = strings.TrimSpace(first[0])
	if len(first) == 2 {
		value = strings.TrimSpace(first[1])
	}

	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		kv := strings.SplitN(seg, "=", 2)
		a := Attr{Key: strings.ToLower(strings.TrimSpace(kv[0]))}
		if len(kv) == 2 {
			a.Value = strings.TrimSpace(kv[1])
		}
		attrs = append(attrs, a)
	}
	return name, value, attrs
}
