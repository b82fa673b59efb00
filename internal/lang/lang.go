// Package lang reduces the free-form language tags found on posts to
// ISO-639 primary subtags so that "en-US", "en-GB" and "EN" all count
// as "en".
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// specialCases maps tags seen in the wild that BCP-47 parsing either
// rejects or resolves to the wrong code.
var specialCases = map[string]string{
	"jp":     "ja",
	"angika": "anp",
}

// Normalize lowercases the tag and reduces it to its primary language
// subtag. The second return is false when the tag is empty or cannot be
// parsed at all; callers decide how to fall back.
func Normalize(tag string) (string, bool) {
	if tag == "" {
		return "", false
	}

	lower := strings.ToLower(strings.TrimSpace(tag))
	if lower == "" {
		return "", false
	}
	if mapped, ok := specialCases[lower]; ok {
		return mapped, true
	}

	parsed, err := language.Parse(lower)
	if err != nil {
		return "", false
	}
	base, _ := parsed.Base()
	return base.String(), true
}
