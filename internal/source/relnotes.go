package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindReleaseNoteMarkdown handles docs sites that publish their release
// history as one markdown document behind a docs API.
const KindReleaseNoteMarkdown = "release_note_markdown"

var (
	relnoteDatePattern    = regexp.MustCompile(`^\s*##\s*(20\d{2}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日)\s*$`)
	relnoteFeaturePattern = regexp.MustCompile(`^\s*###\s+(.+?)\s*$`)
	nonDigitPattern       = regexp.MustCompile(`\D`)
)

type releaseNoteAdapter struct{}

func init() { register(releaseNoteAdapter{}, "coze_release_note_markdown") }

func (releaseNoteAdapter) Kind() string { return KindReleaseNoteMarkdown }

func (releaseNoteAdapter) Policy() Policy {
	return Policy{
		DefaultMax: 24,
		TermTag:    "release-note",
	}
}

// Extract fetches the markdown render of the release page through the
// docs API and splits it into one candidate per dated section. Rows are
// anchored on the public page since the API text has no permalinks.
func (releaseNoteAdapter) Extract(ctx context.Context, req Request) ([]Candidate, error) {
	apiURL := releaseNoteAPIURL(req.SourceURL)
	body, err := req.Fetch(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", apiURL, err)
	}

	limit := req.FeatureLimit(20)
	sections := splitMarkdownReleaseSections(string(body), limit)

	out := make([]Candidate, 0, len(sections))
	for _, sec := range sections {
		dateKey := strings.Trim(nonDigitPattern.ReplaceAllString(sec.dateText, "-"), "-")
		if dateKey == "" {
			dateKey = "latest"
		}
		title := "扣子更新动态"
		hover := "官方更新"
		if sec.dateText != "" {
			title = fmt.Sprintf("扣子更新动态【%s】", sec.dateText)
			hover = sec.dateText + " 官方更新"
		}
		out = append(out, Candidate{
			Title:            title,
			URL:              fmt.Sprintf("%s#coze-update-%s", req.SourceURL, dateKey),
			PublishedAt:      sec.publishedAt,
			DetailPoints:     sec.features,
			HoverDescription: hover,
		})
	}
	sortCandidatesByDate(out)
	return out, nil
}

// releaseNoteAPIURL rewrites a public docs page URL to the docs API
// endpoint that serves its raw markdown. Unknown hosts pass through.
func releaseNoteAPIURL(sourceURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return sourceURL
	}
	host := strings.ToLower(parsed.Host)
	path := parsed.Path
	if host == "docs.coze.cn" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "https://www.coze.cn/api/open/docs" + path
	}
	if (host == "www.coze.cn" || host == "coze.cn") && strings.HasPrefix(path, "/open/docs/") {
		return "https://www.coze.cn/api" + path
	}
	return sourceURL
}

type markdownReleaseSection struct {
	dateText    string
	publishedAt time.Time
	features    []string
}

func splitMarkdownReleaseSections(markdown string, featureLimit int) []markdownReleaseSection {
	var out []markdownReleaseSection
	var current *markdownReleaseSection

	flush := func() {
		if current == nil {
			return
		}
		if featureLimit > 0 && len(current.features) > featureLimit {
			current.features = current.features[:featureLimit]
		}
		out = append(out, *current)
		current = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := relnoteDatePattern.FindStringSubmatch(line); m != nil {
			flush()
			dateText := watch.CleanFeatureText(m[1])
			sec := markdownReleaseSection{dateText: dateText}
			if ts, ok := watch.ParseDateFromText(dateText); ok {
				sec.publishedAt = ts
			}
			current = &sec
			continue
		}
		if current == nil {
			continue
		}
		if m := relnoteFeaturePattern.FindStringSubmatch(line); m != nil {
			appendUnique(&current.features, watch.CleanFeatureText(m[1]))
			continue
		}
		stripped := watch.CleanFeatureText(line)
		for _, marker := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(stripped, marker) {
				appendUnique(&current.features, watch.CleanFeatureText(strings.TrimPrefix(stripped, marker)))
				break
			}
		}
	}
	flush()
	return out
}

func appendUnique(list *[]string, value string) {
	if value == "" {
		return
	}
	for _, have := range *list {
		if have == value {
			return
		}
	}
	*list = append(*list, value)
}
