package content

import (
	"regexp"
	"strings"
)

// allowedTags is the markup subset the publishing transport accepts.
var allowedTags = map[string]bool{
	"b":          true,
	"i":          true,
	"u":          true,
	"s":          true,
	"code":       true,
	"pre":        true,
	"a":          true,
	"blockquote": true,
}

var (
	htmlTagRe  = regexp.MustCompile(`</?([a-zA-Z0-9]+)(\s[^>]*)?>`)
	anchorRe   = regexp.MustCompile(`(?s)<a(\s[^>]*)?>(.*?)</a>`)
	hrefAttrRe = regexp.MustCompile(`href=["'][^"']*["']`)

	boldMdRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicMdRe = regexp.MustCompile(`__(.+?)__`)
	codeMdRe   = regexp.MustCompile("`([^`]+)`")
)

// mdToHTML coerces the markdown emphasis a model tends to emit into the
// HTML tags the transport understands.
func mdToHTML(s string) string {
	s = boldMdRe.ReplaceAllString(s, "<b>$1</b>")
	s = italicMdRe.ReplaceAllString(s, "<i>$1</i>")
	s = codeMdRe.ReplaceAllString(s, "<code>$1</code>")
	return s
}

// sanitizeHTML removes every tag outside the allow-list and strips all
// attributes except href on anchors. Emphasis aliases are normalized.
// Anchors without an href unwrap to their inner text so no unbalanced
// closing tag survives.
func sanitizeHTML(s string) string {
	s = anchorRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := anchorRe.FindStringSubmatch(m)
		if href := hrefAttrRe.FindString(sub[1]); href != "" {
			return "<a " + href + ">" + sub[2] + "</a>"
		}
		return sub[2]
	})

	return htmlTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		match := htmlTagRe.FindStringSubmatch(tag)
		name := strings.ToLower(match[1])
		closing := strings.HasPrefix(tag, "</")

		switch name {
		case "strong":
			name = "b"
		case "em":
			name = "i"
		case "br":
			return "\n"
		}

		if !allowedTags[name] {
			return ""
		}

		if closing {
			return "</" + name + ">"
		}

		if name == "a" {
			if href := hrefAttrRe.FindString(match[2]); href != "" {
				return "<a " + href + ">"
			}
			// Unpaired opening anchor without href.
			return ""
		}

		return "<" + name + ">"
	})
}
