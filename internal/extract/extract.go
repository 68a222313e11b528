// Package extract finds video links in free-form chat text.
package extract

import (
	"regexp"
	"strings"
)

// Match is one recognized video link.
type Match struct {
	URL      string
	Platform string
}

type matcher struct {
	platform string
	re       *regexp.Regexp
}

// Platform patterns are tried in order; the generic pattern catches any
// remaining URL so unknown hosts still get recorded.
var matchers = []matcher{
	{platform: "youtube", re: regexp.MustCompile(`https?://(?:www\.)?youtube\.com/(?:watch\?\S*v=|shorts/)\S+`)},
	{platform: "youtube", re: regexp.MustCompile(`https?://youtu\.be/\S+`)},
	{platform: "tiktok", re: regexp.MustCompile(`https?://(?:www\.|vm\.)?tiktok\.com/\S+`)},
	{platform: "instagram", re: regexp.MustCompile(`https?://(?:www\.)?instagram\.com/(?:reels?|p|tv)/\S+`)},
	{platform: "twitter", re: regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/\S+/status/\S+`)},
	{platform: "generic", re: regexp.MustCompile(`https?://\S+`)},
}

// FirstLink returns the first video link found in text. Platform patterns win
// over the generic URL pattern regardless of position in the text.
func FirstLink(text string) (Match, bool) {
	for _, m := range matchers {
		if loc := m.re.FindString(text); loc != "" {
			url := trimTrailingPunct(loc)
			if url == "" {
				continue
			}
			return Match{URL: url, Platform: m.platform}, true
		}
	}
	return Match{}, false
}

// trimTrailingPunct drops punctuation that chat text tends to glue onto the
// end of a pasted link.
func trimTrailingPunct(s string) string {
	return strings.TrimRight(s, `.,!?;:)]}>"'`)
}
