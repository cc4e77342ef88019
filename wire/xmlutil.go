package wire

import (
	"strings"
)

// extractTopLevelTag returns the text content of the first occurrence of
// <tag>...</tag> found anywhere in body. Extraction is top-level only: it
// does not track nesting depth or attempt to parse a document tree, it
// just locates the first matching open/close pair. This is sufficient for
// the handful of well-known response elements (UploadId, ETag, Code,
// Message) the engine needs.
func extractTopLevelTag(body []byte, tag string) (string, bool) {
	open := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	s := string(body)
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := strings.Index(s[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return s[start : start+end], true
}

// decodeXMLQuoteEntity replaces the &quot; entity with a literal double
// quote. ETag values embedded in response bodies arrive XML-entity-encoded
// and need this before any further processing.
func decodeXMLQuoteEntity(s string) string {
	return strings.ReplaceAll(s, "&quot;", `"`)
}

// stripQuotes removes a single pair of surrounding double quotes, if
// present. ETag header and body values arrive quoted; the core always
// strips them before storing.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
