package share

import (
	"regexp"
	"strings"
)

var downloadPathRe = regexp.MustCompile(`/download/([a-zA-Z0-9-]+)`)

// ShareURL builds the retrieval locator for id under baseURL.
func ShareURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/download/" + id
}

// ExtractID accepts either a bare id or a pasted share URL and returns the id.
func ExtractID(input string) string {
	input = strings.TrimSpace(input)
	if m := downloadPathRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return input
}
