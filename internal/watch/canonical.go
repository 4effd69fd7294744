package watch

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// trackingQueryKeys are campaign/click identifiers stripped during URL
// normalization, in addition to the utm_* prefix family.
var trackingQueryKeys = map[string]struct{}{
	"ref":     {},
	"spm":     {},
	"fbclid":  {},
	"gclid":   {},
	"igshid":  {},
	"mkt_tok": {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_hsenc":  {},
	"_hsmi":   {},
}

var (
	cjkPattern        = regexp.MustCompile(`\p{Han}`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	linkEmojiPattern  = regexp.MustCompile(`🔗\s*.*$`)
)

// NormalizeURL produces the comparison form of a URL: lowercased
// scheme/host, fragment removed, tracking params stripped, remaining
// params re-encoded in their original order, trailing slash removed.
// Malformed or scheme-less input is returned trimmed but otherwise
// unchanged; this function never fails.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(parsed.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			value := ""
			hasValue := false
			if idx := strings.IndexByte(pair, '='); idx >= 0 {
				key = pair[:idx]
				value = pair[idx+1:]
				hasValue = true
			}
			decodedKey, err := url.QueryUnescape(key)
			if err != nil {
				decodedKey = key
			}
			lower := strings.ToLower(decodedKey)
			if strings.HasPrefix(lower, "utm_") {
				continue
			}
			if _, drop := trackingQueryKeys[lower]; drop {
				continue
			}
			encoded := url.QueryEscape(decodedKey)
			if hasValue {
				decodedValue, err := url.QueryUnescape(value)
				if err != nil {
					decodedValue = value
				}
				encoded += "=" + url.QueryEscape(decodedValue)
			} else {
				encoded += "="
			}
			kept = append(kept, encoded)
		}
		parsed.RawQuery = strings.Join(kept, "&")
	}

	normalized := parsed.String()
	return strings.TrimRight(normalized, "/")
}

// HostOfURL returns the lowercased host of a URL, or "" when unparseable.
func HostOfURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// IsSameOrSubdomain reports whether host equals parent or is one of its
// subdomains.
func IsSameOrSubdomain(host, parent string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	p := strings.ToLower(strings.TrimSpace(parent))
	if h == "" || p == "" {
		return false
	}
	return h == p || strings.HasSuffix(h, "."+p)
}

// CanonicalTitle selects the preferred title field and lowercases it.
func CanonicalTitle(r Record) string {
	for _, candidate := range []string{r.TitleOriginal, r.Title, r.TitleEN, r.TitleZH} {
		if t := strings.TrimSpace(candidate); t != "" {
			return strings.ToLower(t)
		}
	}
	return ""
}

// CanonicalTitleKey is CanonicalTitle with HTML tags stripped, entities
// unescaped, and whitespace collapsed. Used for title-only dedup keys.
func CanonicalTitleKey(r Record) string {
	title := CanonicalTitle(r)
	title = htmlTagPattern.ReplaceAllString(title, " ")
	title = html.UnescapeString(title)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(title, " "))
}

// ContainsCJK reports whether the text carries any Han character.
func ContainsCJK(text string) bool {
	return cjkPattern.MatchString(text)
}

// KeywordHit reports whether a keyword occurs in the searchable text.
// CJK keywords match by substring; Latin keywords must not be embedded
// inside a longer alphanumeric run ("ai" must not hit "said").
func KeywordHit(text, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	if ContainsCJK(kw) {
		return strings.Contains(text, kw)
	}

	lower := strings.ToLower(text)
	for start := 0; ; {
		idx := strings.Index(lower[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if !alnumByteAt(lower, idx-1) && !alnumByteAt(lower, end) {
			return true
		}
		start = idx + 1
	}
}

func alnumByteAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	b := s[i]
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// genericCompactSubstrings are navigation labels that mark a link title
// as a category/index page rather than a concrete announcement.
var genericCompactSubstrings = []string{
	"上一篇", "下一篇", "返回", "目录", "更多", "首页", "动态与公告", "发布渠道",
}

var genericCompactExact = map[string]struct{}{
	"产品公告":            {},
	"公告":              {},
	"升级公告":            {},
	"腾讯云智能体开发平台":       {},
	"tencentcloudadp": {},
}

// IsGenericAnnouncementTitle reports whether a title is a generic
// navigation/index label. Such rows are either dropped or expanded via
// the one-hop generic-page policy.
func IsGenericAnnouncementTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return true
	}
	compact := whitespacePattern.ReplaceAllString(t, "")
	for _, needle := range genericCompactSubstrings {
		if strings.Contains(compact, needle) {
			return true
		}
	}
	_, exact := genericCompactExact[compact]
	return exact
}

// CleanFeatureText collapses whitespace, removes zero-width characters
// and trailing link markers, and trims list punctuation.
func CleanFeatureText(text string) string {
	t := strings.ReplaceAll(text, "\u200b", "")
	t = strings.ReplaceAll(t, "\ufeff", "")
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return ""
	}
	t = strings.TrimSpace(linkEmojiPattern.ReplaceAllString(t, ""))
	return strings.Trim(t, " ：:;；，,。")
}
