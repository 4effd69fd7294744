package source

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

var (
	hydrationPattern = regexp.MustCompile(`(?s)window\.__staticRouterHydrationData\s*=\s*JSON\.parse\("(.*)"\);`)

	embeddedURLFirstPattern = regexp.MustCompile(
		`(?i)"url"\s*:\s*"(?P<url>[^"]+)"[^{}]{0,480}"title"\s*:\s*"(?P<title>[^"]+)"(?:[^{}]{0,240}"recentReleaseTime"\s*:\s*"(?P<dt>[^"]+)")?`)
	embeddedTitleFirstPattern = regexp.MustCompile(
		`(?i)"title"\s*:\s*"(?P<title>[^"]+)"[^{}]{0,480}"url"\s*:\s*"(?P<url>[^"]+)"(?:[^{}]{0,240}"recentReleaseTime"\s*:\s*"(?P<dt>[^"]+)")?`)
)

// ExtractEmbeddedLinkCandidates mines structured title/url/date entries
// embedded in a page's scripts: the router hydration JSON payload when
// present, plus two escape-tolerant regex passes over the raw text.
// Results stay on the source's host and path scope, generic titles are
// skipped, and on key collisions an upgrade/update title wins.
func ExtractEmbeddedLinkCandidates(sourceURL string, body []byte) []Candidate {
	sourceHost := watch.HostOfURL(sourceURL)
	scope := scopePath(sourceURL)

	text := strings.ReplaceAll(string(body), `\/`, "/")
	if strings.Contains(text, `\"`) {
		text = strings.ReplaceAll(text, `\"`, `"`)
	}

	keys := make([]string, 0, 8)
	byKey := make(map[string]Candidate, 8)

	add := func(cand Candidate, preferUpgrades bool) {
		key := watch.NormalizeURL(cand.URL)
		prev, seen := byKey[key]
		if !seen {
			keys = append(keys, key)
			byKey[key] = cand
			return
		}
		if preferUpgrades && isUpgradeTitle(cand.Title) && !isUpgradeTitle(prev.Title) {
			byKey[key] = cand
		}
	}

	// Hydration JSON carries the cleanest entries; walk it first.
	if m := hydrationPattern.FindStringSubmatch(string(body)); m != nil {
		raw := strings.ReplaceAll(m[1], `\/`, "/")
		if jsonText, err := strconv.Unquote(`"` + raw + `"`); err == nil {
			var payload any
			if err := json.Unmarshal([]byte(jsonText), &payload); err == nil {
				node := payload
				if obj, ok := payload.(map[string]any); ok {
					if loader, ok := obj["loaderData"]; ok {
						node = loader
					}
				}
				walkHydration(node, sourceURL, sourceHost, scope, func(cand Candidate) {
					add(cand, false)
				})
			}
		}
	}

	for _, pattern := range []*regexp.Regexp{embeddedURLFirstPattern, embeddedTitleFirstPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			groups := namedGroups(pattern, m)
			rawURL := decodeEscapedText(groups["url"])
			rawTitle := decodeEscapedText(groups["title"])
			rawDate := decodeEscapedText(groups["dt"])
			if rawURL == "" || rawTitle == "" {
				continue
			}
			href := absoluteURL(sourceURL, rawURL)
			if href == "" {
				continue
			}
			if !watch.IsSameOrSubdomain(watch.HostOfURL(href), sourceHost) {
				continue
			}
			if !inScope(scope, href) {
				continue
			}
			if watch.IsGenericAnnouncementTitle(rawTitle) {
				continue
			}
			published, _ := watch.ParseDateFromText(rawDate)
			add(Candidate{Title: rawTitle, URL: href, PublishedAt: published}, true)
		}
	}

	out := make([]Candidate, 0, len(keys))
	for _, key := range keys {
		out = append(out, byKey[key])
	}
	return out
}

func walkHydration(node any, sourceURL, sourceHost, scope string, emit func(Candidate)) {
	switch v := node.(type) {
	case map[string]any:
		rawURL, hasURL := v["url"].(string)
		rawTitle, hasTitle := v["title"].(string)
		if hasURL && hasTitle {
			rawURL = strings.TrimSpace(rawURL)
			rawTitle = strings.TrimSpace(rawTitle)
			rawDate := firstString(v, "recentReleaseTime", "updatedAt")
			href := absoluteURL(sourceURL, rawURL)
			if rawURL != "" && rawTitle != "" && href != "" &&
				watch.IsSameOrSubdomain(watch.HostOfURL(href), sourceHost) &&
				inScope(scope, href) &&
				!watch.IsGenericAnnouncementTitle(rawTitle) {
				published, _ := watch.ParseDateFromText(rawDate)
				emit(Candidate{Title: rawTitle, URL: href, PublishedAt: published})
			}
		}
		for _, child := range v {
			walkHydration(child, sourceURL, sourceHost, scope, emit)
		}
	case []any:
		for _, child := range v {
			walkHydration(child, sourceURL, sourceHost, scope, emit)
		}
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func isUpgradeTitle(title string) bool {
	return strings.Contains(title, "升级") || strings.Contains(title, "更新")
}

func namedGroups(pattern *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string, 3)
	for i, name := range pattern.SubexpNames() {
		if name != "" && i < len(match) {
			out[name] = match[i]
		}
	}
	return out
}
