package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/katharinadi0523-create/ai-news-radar/internal/globaltime"
	"github.com/katharinadi0523-create/ai-news-radar/internal/source"
	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

func TestSelectCandidatesBuckets(t *testing.T) {
	t.Parallel()

	keepAfter := time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC) }
	policy := source.Policy{UseBuckets: true, OldFallback: 2, UndatedFallback: 1, DefaultMax: 10}

	candidates := []source.Candidate{
		{Title: "old-1", PublishedAt: day(1)},
		{Title: "recent-old", PublishedAt: day(14)},
		{Title: "undated"},
		{Title: "recent-new", PublishedAt: day(18)},
	}

	out := selectCandidates(candidates, policy, 0, keepAfter)
	if len(out) != 2 || out[0].Title != "recent-new" || out[1].Title != "recent-old" {
		t.Fatalf("recent rows must win sorted newest-first: %+v", out)
	}

	// No recent rows: bounded slice of old rows, newest first.
	candidates = []source.Candidate{
		{Title: "old-a", PublishedAt: day(3)},
		{Title: "old-b", PublishedAt: day(7)},
		{Title: "old-c", PublishedAt: day(5)},
		{Title: "undated"},
	}
	out = selectCandidates(candidates, policy, 0, keepAfter)
	if len(out) != 2 || out[0].Title != "old-b" || out[1].Title != "old-c" {
		t.Fatalf("old fallback must cap at 2 newest: %+v", out)
	}

	// Neither recent nor old: bounded slice of undated rows.
	candidates = []source.Candidate{{Title: "u1"}, {Title: "u2"}}
	out = selectCandidates(candidates, policy, 0, keepAfter)
	if len(out) != 1 || out[0].Title != "u1" {
		t.Fatalf("undated fallback must cap at 1: %+v", out)
	}
}

func TestSelectCandidatesCaps(t *testing.T) {
	t.Parallel()

	candidates := make([]source.Candidate, 0, 30)
	for i := 0; i < 30; i++ {
		candidates = append(candidates, source.Candidate{Title: fmt.Sprintf("row-%d", i)})
	}

	policy := source.Policy{DefaultMax: 20}
	if out := selectCandidates(candidates, policy, 0, time.Time{}); len(out) != 20 {
		t.Fatalf("default cap: %d", len(out))
	}
	if out := selectCandidates(candidates, policy, 5, time.Time{}); len(out) != 5 {
		t.Fatalf("descriptor cap must override: %d", len(out))
	}
	if out := selectCandidates(candidates, source.Policy{}, 0, time.Time{}); len(out) != 30 {
		t.Fatalf("zero caps mean unlimited: %d", len(out))
	}
}

func rssBody(pubDate string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Vendor</title>
<item><title>平台 8 月更新</title><link>/updates/aug</link><pubDate>` + pubDate + `</pubDate></item>
</channel></rss>`
}

func TestFetchCategoryRSS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody("Tue, 18 Aug 2026 09:00:00 GMT"))
	}))
	defer server.Close()

	globaltime.SetMockTime(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	officials := NewOfficials(NewClient(5*time.Second), 2, zerolog.Nop())
	category := watch.Category{
		ID:   "vendor",
		Name: "Vendor",
		OfficialSources: []watch.SourceDescriptor{
			{URL: server.URL + "/feed.xml", Label: "博客", Parser: "rss"},
		},
	}

	items, errs := officials.FetchCategory(context.Background(), category, 7)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}

	item := items[0]
	if item.Title != "平台 8 月更新" {
		t.Fatalf("unexpected title: %q", item.Title)
	}
	if item.SiteID != "official" || item.SiteName != "Official" || item.WatchScore != 90 {
		t.Fatalf("unexpected provenance fields: %+v", item)
	}
	host := strings.TrimPrefix(server.URL, "http://")
	if item.Source != "官方渠道: 【博客】 "+host {
		t.Fatalf("unexpected source label: %q", item.Source)
	}
	if item.PublishedAt != "2026-08-18T09:00:00Z" {
		t.Fatalf("unexpected published_at: %q", item.PublishedAt)
	}
	if item.FirstSeenAt != "2026-08-20T00:00:00Z" {
		t.Fatalf("first_seen_at must come from the mock clock: %q", item.FirstSeenAt)
	}
	if len(item.WatchMatchedTerms) != 2 ||
		item.WatchMatchedTerms[0] != "official-source" ||
		item.WatchMatchedTerms[1] != "rss-feed" {
		t.Fatalf("unexpected matched terms: %v", item.WatchMatchedTerms)
	}
	if item.ID != watch.ContentID("vendor", item.URL, item.Title) {
		t.Fatalf("record id must be content-derived: %q", item.ID)
	}
	if item.AutoExpandDetails {
		t.Fatal("records without detail points must not auto-expand")
	}
}

func TestFetchCategorySourceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	officials := NewOfficials(NewClient(5*time.Second), 2, zerolog.Nop())
	category := watch.Category{
		ID: "vendor",
		OfficialSources: []watch.SourceDescriptor{
			{URL: server.URL + "/feed.xml", Parser: "rss"},
		},
	}

	items, errs := officials.FetchCategory(context.Background(), category, 7)
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error string, got %v", errs)
	}
	want := server.URL + "/feed.xml: unexpected status 500"
	if errs[0] != want {
		t.Fatalf("error string mismatch: got %q want %q", errs[0], want)
	}
}

func TestFetchCategoryUnknownParserFallsBack(t *testing.T) {
	listing := `<html><body>
	<a href="/docs/2026-08-18-release">发布说明 2026-08-18</a>
	</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing)
	}))
	defer server.Close()

	globaltime.SetMockTime(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	officials := NewOfficials(NewClient(5*time.Second), 1, zerolog.Nop())
	category := watch.Category{
		ID:   "vendor",
		Name: "Vendor",
		OfficialSources: []watch.SourceDescriptor{
			{URL: server.URL + "/docs/", Parser: "mystery_parser"},
		},
	}

	items, errs := officials.FetchCategory(context.Background(), category, 7)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 1 || items[0].Title != "发布说明 2026-08-18" {
		t.Fatalf("expected the link scanner fallback to run, got %+v", items)
	}
}

func TestFetchCategoryGenericExpansion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/docs/bulletins">产品公告</a></body></html>`)
	})
	mux.HandleFunc("/docs/bulletins", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"平台更新公告 V2","url":"\/docs\/bulletins\/v2","recentReleaseTime":"2026-08-18"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	globaltime.SetMockTime(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	officials := NewOfficials(NewClient(5*time.Second), 1, zerolog.Nop())
	category := watch.Category{
		ID:   "vendor",
		Name: "Vendor",
		OfficialSources: []watch.SourceDescriptor{
			{URL: server.URL + "/docs/", Parser: "html_links"},
		},
	}

	items, errs := officials.FetchCategory(context.Background(), category, 7)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 expanded record, got %+v", items)
	}
	item := items[0]
	if item.Title != "平台更新公告 V2" {
		t.Fatalf("unexpected expanded title: %q", item.Title)
	}
	if item.URL != server.URL+"/docs/bulletins/v2" {
		t.Fatalf("unexpected expanded url: %q", item.URL)
	}
	if item.PublishedAt != "2026-08-18T00:00:00Z" {
		t.Fatalf("unexpected expanded date: %q", item.PublishedAt)
	}
}

func TestDetailCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "<html><body>2026-08-11</body></html>")
	}))
	defer server.Close()

	cache := newDetailCache(NewClient(5 * time.Second))
	ctx := context.Background()

	if ts := cache.pageDate(ctx, server.URL+"/a"); !ts.Equal(time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected page date: %v", ts)
	}
	if _, err := cache.fetch(ctx, server.URL+"/a"); err != nil {
		t.Fatalf("cached fetch failed: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}

	// Errors are memoized too.
	server500 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "x", http.StatusNotFound)
	}))
	defer server500.Close()
	if ts := cache.pageDate(ctx, server500.URL+"/b"); !ts.IsZero() {
		t.Fatalf("failed fetch must yield zero date: %v", ts)
	}
}
