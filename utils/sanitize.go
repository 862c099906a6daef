package utils

import "github.com/microcosm-cc/bluemonday"

// Meta fields end up inside <head> tags, so no markup survives at all.
var metaSanitizer = bluemonday.StrictPolicy()

// SanitizeMeta strips all HTML from admin-supplied SEO meta text.
func SanitizeMeta(input string) string {
	return metaSanitizer.Sanitize(input)
}
