package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindGitHubReleases handles github.com/<owner>/<repo>/releases pages
// by reading the repos API instead of scraping the HTML.
const KindGitHubReleases = "github_releases"

var (
	mdHeadingPattern  = regexp.MustCompile(`^\s{0,3}#{2,6}\s+(.+?)\s*$`)
	mdLinkPattern     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdLeadTrimPattern = regexp.MustCompile(`^[:：\-\s]+`)
	compactPattern    = regexp.MustCompile(`[\s\p{P}\p{S}_]+`)
)

// Section headings that carry no release content of their own.
var githubNoiseHeadings = map[string]bool{
	"feature snapshots": true,
	"what's changed":    true,
	"whats changed":     true,
	"what s changed":    true,
	"full changelog":    true,
	"highlights":        true,
	"breaking changes":  true,
	"bug fixes":         true,
	"fixes":             true,
	"docs":              true,
	"documentation":     true,
	"chore":             true,
	"chores":            true,
	"other":             true,
	"contributors":      true,
	"new contributors":  true,
}

var githubNoiseFragments = []string{
	"experience now",
	"try the experience now",
	"release notes",
	"upgrade guide",
	"other improvements",
	"security updates",
	"bug fixes",
	"fixes",
}

type githubReleasesAdapter struct{}

func init() { register(githubReleasesAdapter{}, "github_releases_features") }

func (githubReleasesAdapter) Kind() string { return KindGitHubReleases }

func (githubReleasesAdapter) Policy() Policy {
	return Policy{
		UseBuckets:      true,
		OldFallback:     5,
		UndatedFallback: 5,
		DefaultMax:      10,
		TermTag:         "github-release",
	}
}

// Extract resolves the repo from the releases page URL, fetches its
// releases from the API, and mines each release body's second-level
// headings for feature points. Drafts are skipped.
func (githubReleasesAdapter) Extract(ctx context.Context, req Request) ([]Candidate, error) {
	owner, repo, ok := githubRepoFromReleasesURL(req.SourceURL)
	if !ok {
		return nil, fmt.Errorf("invalid github releases url")
	}
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases", owner, repo)
	body, err := req.Fetch(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", apiURL, err)
	}

	var releases []struct {
		Draft       bool   `json:"draft"`
		TagName     string `json:"tag_name"`
		Name        string `json:"name"`
		HTMLURL     string `json:"html_url"`
		PublishedAt string `json:"published_at"`
		CreatedAt   string `json:"created_at"`
		Body        string `json:"body"`
	}
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}

	limit := req.FeatureLimit(12)
	out := make([]Candidate, 0, len(releases))
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		title := watch.CleanFeatureText(rel.TagName)
		if title == "" {
			title = watch.CleanFeatureText(rel.Name)
		}
		if title == "" {
			continue
		}
		cand := Candidate{
			Title:        title,
			URL:          strings.TrimSpace(rel.HTMLURL),
			DetailPoints: GitHubReleaseFeaturePoints(rel.Body, limit),
		}
		published := rel.PublishedAt
		if published == "" {
			published = rel.CreatedAt
		}
		if ts, ok := watch.ParseISO(published); ok {
			cand.PublishedAt = ts
		} else if ts, ok := watch.ParseDateFromText(published); ok {
			cand.PublishedAt = ts
		}
		out = append(out, cand)
	}
	return out, nil
}

func githubRepoFromReleasesURL(sourceURL string) (owner, repo string, ok bool) {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", "", false
	}
	host := strings.ToLower(parsed.Host)
	if host != "github.com" && host != "www.github.com" {
		return "", "", false
	}
	segs := splitPathSegments(parsed.Path)
	if len(segs) < 3 || !strings.EqualFold(segs[2], "releases") {
		return "", "", false
	}
	if segs[0] == "" || segs[1] == "" {
		return "", "", false
	}
	return segs[0], segs[1], true
}

// GitHubReleaseFeaturePoints extracts the feature headlines from a
// release body: markdown headings level 2 and deeper, with link and
// emphasis markup stripped and boilerplate section names dropped.
func GitHubReleaseFeaturePoints(body string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	out := make([]string, 0, limit)
	seen := make(map[string]bool, limit)

	for _, line := range strings.Split(body, "\n") {
		line = watch.CleanFeatureText(line)
		if line == "" {
			continue
		}
		m := mdHeadingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := watch.CleanFeatureText(m[1])
		if title == "" {
			continue
		}
		title = mdLinkPattern.ReplaceAllString(title, "$1")
		title = strings.NewReplacer("**", "", "__", "", "`", "").Replace(title)
		title = strings.TrimSpace(mdLeadTrimPattern.ReplaceAllString(title, ""))
		if title == "" {
			continue
		}
		compact := strings.ToLower(strings.TrimSpace(compactPattern.ReplaceAllString(title, " ")))
		if githubNoiseHeadings[compact] {
			continue
		}
		if containsAny(compact, githubNoiseFragments) {
			continue
		}
		if utf8.RuneCountInString(compact) <= 2 {
			continue
		}
		if seen[compact] {
			continue
		}
		seen[compact] = true
		out = append(out, title)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func containsAny(s string, fragments []string) bool {
	for _, frag := range fragments {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
