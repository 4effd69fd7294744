package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindHTMLLinks is the generic anchor scanner used when a source
// declares no parser kind.
const KindHTMLLinks = "html_links"

var releaseWordPattern = regexp.MustCompile(`(?i)(更新|发布|版本|公告|release|changelog|note)`)

type htmlLinksAdapter struct{}

func init() { register(htmlLinksAdapter{}, "html", "links") }

func (htmlLinksAdapter) Kind() string { return KindHTMLLinks }

func (htmlLinksAdapter) Policy() Policy {
	return Policy{
		UseBuckets:         true,
		OldFallback:        3,
		UndatedFallback:    5,
		ResolveDetailDates: true,
		ExpandGenericLinks: true,
	}
}

// Extract scans anchors on the listing page for same-site links whose
// text matches the category keywords or a release word, then merges the
// candidates embedded in the page's scripts. Generic index titles are
// kept here so the fetcher can expand them one hop.
func (htmlLinksAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sourceHost := watch.HostOfURL(req.SourceURL)
	scope := scopePath(req.SourceURL)

	keys := make([]string, 0, 16)
	byKey := make(map[string]Candidate, 16)
	add := func(cand Candidate) {
		key := watch.NormalizeURL(cand.URL)
		if _, seen := byKey[key]; seen {
			return
		}
		keys = append(keys, key)
		byKey[key] = cand
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		title := watch.CleanFeatureText(sel.Text())
		if title == "" {
			return
		}
		resolved := absoluteURL(req.SourceURL, href)
		if resolved == "" {
			return
		}
		if !watch.IsSameOrSubdomain(watch.HostOfURL(resolved), sourceHost) {
			return
		}
		if !inScope(scope, resolved) {
			return
		}
		if !linkTitleRelevant(title, req.Keywords) &&
			!watch.IsGenericAnnouncementTitle(title) {
			return
		}
		add(Candidate{
			Title:       title,
			URL:         resolved,
			PublishedAt: anchorDate(sel, resolved),
		})
	})

	for _, cand := range ExtractEmbeddedLinkCandidates(req.SourceURL, req.Body) {
		add(cand)
	}

	out := make([]Candidate, 0, len(keys))
	for _, key := range keys {
		out = append(out, byKey[key])
	}
	return out, nil
}

func linkTitleRelevant(title string, keywords []string) bool {
	for _, kw := range keywords {
		if watch.KeywordHit(title, kw) {
			return true
		}
	}
	return releaseWordPattern.MatchString(title)
}

// anchorDate looks for a date near the anchor: its own text, the
// enclosing element's text, then the href itself.
func anchorDate(sel *goquery.Selection, href string) time.Time {
	if ts, ok := watch.ParseDateFromText(sel.Text()); ok {
		return ts
	}
	if parent := sel.Parent(); parent.Length() > 0 {
		if ts, ok := watch.ParseDateFromText(parent.Text()); ok {
			return ts
		}
	}
	if ts, ok := watch.ParseDateFromText(href); ok {
		return ts
	}
	return time.Time{}
}
