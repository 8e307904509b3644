package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform is the tag produced by Classify.
type Platform string

const (
	Smule       Platform = "smule"
	YouTube     Platform = "youtube"
	Instagram   Platform = "instagram"
	TikTok      Platform = "tiktok"
	Twitter     Platform = "twitter"
	Facebook    Platform = "facebook"
	Unsupported Platform = "unsupported"
	NoLink      Platform = "no link"
)

type rule struct {
	platform Platform
	domains  []string
}

// Order matters: the first platform with a matching domain wins.
var rules = []rule{
	{Smule, []string{"smule.com"}},
	{YouTube, []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}},
	{Instagram, []string{"instagram.com", "instagr.am"}},
	{TikTok, []string{"tiktok.com"}},
	{Twitter, []string{"twitter.com", "x.com"}},
	{Facebook, []string{"facebook.com", "fb.watch", "fb.com"}},
}

var displayNames = map[Platform]string{
	Smule:     "Smule",
	YouTube:   "YouTube",
	Instagram: "Instagram",
	TikTok:    "TikTok",
	Twitter:   "Twitter/X",
	Facebook:  "Facebook",
}

var (
	urlPattern      = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	bareLinkPattern = buildBareLinkPattern()
)

func buildBareLinkPattern() *regexp.Regexp {
	var domains []string
	for _, r := range rules {
		for _, d := range r.domains {
			domains = append(domains, regexp.QuoteMeta(d))
		}
	}
	return regexp.MustCompile(`(?i)(?:^|[\s(])((?:[a-z0-9-]+\.)*(?:` + strings.Join(domains, "|") + `)(?:[/?#][^\s<>"]*)?)(?:$|[\s.,;:!?)])`)
}

// Classify extracts the first link from text and tags it with its platform.
// The returned URL is empty for NoLink.
func Classify(text string) (Platform, string) {
	link := ExtractURL(text)
	if link == "" {
		return NoLink, ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return Unsupported, link
	}
	return ForHost(u.Hostname()), link
}

// ExtractURL returns the first http(s) URL in text, or a bare known domain with https:// prepended.
func ExtractURL(text string) string {
	if m := urlPattern.FindString(text); m != "" {
		return strings.TrimRight(m, ".,;:!?)")
	}
	if m := bareLinkPattern.FindStringSubmatch(text); m != nil {
		return "https://" + strings.TrimRight(m[1], ".,;:!?)")
	}
	return ""
}

// ForHost matches a hostname case-insensitively against the known domains.
func ForHost(host string) Platform {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, r := range rules {
		for _, d := range r.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return r.platform
			}
		}
	}
	return Unsupported
}

func (p Platform) Supported() bool {
	_, ok := displayNames[p]
	return ok
}

// DisplayName is the human name used in chat replies.
func (p Platform) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

func (p Platform) String() string { return string(p) }

// All lists supported platforms in match order.
func All() []Platform {
	out := make([]Platform, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.platform)
	}
	return out
}
