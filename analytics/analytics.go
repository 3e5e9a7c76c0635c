// Package analytics counts article page views server side without cookies.
// Visitors are identified by a salted hash of IP and User-Agent that rotates
// with the installation salt.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// View is a single counted page view.
type View struct {
	ID        int64     `json:"-"`
	VisitorID string    `json:"-"`
	Path      string    `json:"path"`
	Slug      string    `json:"slug"`
	Referrer  string    `json:"referrer"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}

// BotView is a crawler request for a counted page.
type BotView struct {
	ID        int64     `json:"-"`
	BotName   string    `json:"bot_name"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// PageStat is the view count of one article.
type PageStat struct {
	Slug  string `json:"slug"`
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DimensionStat is a count for one value of a dimension such as device.
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyView is the number of views on one day.
type DailyView struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// Summary aggregates views over a period.
type Summary struct {
	Period         string          `json:"period"`
	TotalViews     int             `json:"total_views"`
	UniqueVisitors int             `json:"unique_visitors"`
	BotViews       int             `json:"bot_views"`
	TopPages       []PageStat      `json:"top_pages"`
	Devices        []DimensionStat `json:"devices"`
	Referrers      []DimensionStat `json:"referrers"`
	Bots           []DimensionStat `json:"bots"`
	DailyViews     []DailyView     `json:"daily_views"`
}

func hash(salt string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	for _, p := range parts {
		h.Write([]byte("|" + p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// DeviceType classifies a User-Agent as Desktop, Mobile or Tablet.
func DeviceType(ua string) string {
	ua = strings.ToLower(ua)
	// iPad user agents contain "mobile" as well.
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android"):
		return "Mobile"
	default:
		return "Desktop"
	}
}

var botMarkers = []string{
	"bot", "crawler", "spider", "crawl", "slurp", "scrape",
	"yandex", "baidu", "facebookexternalhit",
	"curl", "wget", "python-requests", "go-http-client",
}

// IsBot checks if the User-Agent is likely a bot, crawler or script.
// An empty User-Agent counts as a bot.
func IsBot(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	ua = strings.ToLower(ua)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// Ordered so that specific names win over the generic markers.
var botNames = []struct{ pattern, name string }{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"yandex", "Yandex"},
	{"baidu", "Baidu"},
	{"duckduckbot", "DuckDuckBot"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedIn"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"slurp", "Yahoo Slurp"},
	{"curl", "curl"},
	{"wget", "Wget"},
	{"crawler", "Generic Crawler"},
	{"spider", "Generic Spider"},
}

// ExtractBotName names the bot in a User-Agent string.
func ExtractBotName(ua string) string {
	ua = strings.ToLower(ua)
	if ua == "" {
		return "Empty"
	}
	for _, b := range botNames {
		if strings.Contains(ua, b.pattern) {
			return b.name
		}
	}
	if strings.Contains(ua, "bot") {
		return "Other Bot"
	}
	return "Unknown"
}

var referrerDomainRegex = regexp.MustCompile(`^https?://(?:www\.)?([^/:]+)`)

// CleanReferrer reduces a referrer URL to a source name or domain.
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}
	lower := strings.ToLower(ref)
	for _, se := range []struct{ marker, name string }{
		{"google.", "Google"},
		{"bing.", "Bing"},
		{"duckduckgo.", "DuckDuckGo"},
		{"yahoo.", "Yahoo"},
		{"github.", "GitHub"},
	} {
		if strings.Contains(lower, se.marker) {
			return se.name
		}
	}
	if m := referrerDomainRegex.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return "Other"
}

// ParsePeriod maps a period name to a number of days. Unknown names mean "week".
func ParsePeriod(period string) (string, int) {
	switch period {
	case "today":
		return period, 1
	case "month":
		return period, 30
	case "year":
		return period, 365
	default:
		return "week", 7
	}
}
