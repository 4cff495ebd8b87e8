package proxy

import (
	"regexp"
	"strings"
)

var multiSlash = regexp.MustCompile(`/+`)

// urlJoin joins path segments with "/", collapsing repeated slashes to a
// single slash but restoring the "://" immediately after "http"/"https".
// Only the last argument's query string (the part from its first "?"
// onward) survives the join; it is stripped before joining and
// re-appended verbatim afterward, so a value containing additional
// literal "?" characters is preserved unchanged.
func urlJoin(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}

	segs := make([]string, len(parts))
	copy(segs, parts)

	lastIdx := len(segs) - 1
	lastSplit := strings.Split(segs[lastIdx], "?")
	segs[lastIdx] = lastSplit[0]

	nonEmpty := make([]string, 0, len(segs))
	for _, s := range segs {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}

	joined := strings.Join(nonEmpty, "/")
	joined = multiSlash.ReplaceAllString(joined, "/")
	joined = strings.Replace(joined, "http:/", "http://", 1)
	joined = strings.Replace(joined, "https:/", "https://", 1)

	result := append([]string{joined}, lastSplit[1:]...)
	return strings.Join(result, "?")
}
