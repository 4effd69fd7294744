package source

import (
	"context"
	"testing"
	"time"
)

const htmlLinksFixture = `<html><body>
<ul>
  <li>2026-08-14 <a href="/document/product/100/5">平台 8 月版本发布</a></li>
  <li><a href="/document/product/100/6">agent 能力介绍</a></li>
  <li><a href="/document/product/200/1">别的产品更新</a></li>
  <li><a href="https://elsewhere.example.com/x">外站更新</a></li>
  <li><a href="/document/product/100/7">产品公告</a></li>
  <li><a href="/document/product/100/9">与主题无关的页面</a></li>
</ul>
</body></html>`

func TestHTMLLinksExtract(t *testing.T) {
	t.Parallel()

	adapter, _ := Lookup("html_links")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://cloud.example.com/document/product/100/1",
		Body:      []byte(htmlLinksFixture),
		Keywords:  []string{"agent"},
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(out), out)
	}

	first := out[0]
	if first.Title != "平台 8 月版本发布" {
		t.Fatalf("unexpected first candidate: %q", first.Title)
	}
	if first.URL != "https://cloud.example.com/document/product/100/5" {
		t.Fatalf("unexpected first url: %q", first.URL)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date near the anchor not picked up: %v", first.PublishedAt)
	}

	// Keyword-matched title, no nearby date.
	if out[1].Title != "agent 能力介绍" || !out[1].PublishedAt.IsZero() {
		t.Fatalf("unexpected keyword candidate: %+v", out[1])
	}

	// Generic index titles stay in the raw extraction for later expansion.
	if out[2].Title != "产品公告" {
		t.Fatalf("expected generic candidate kept: %+v", out[2])
	}
}

func TestHTMLLinksExtractDedupByURL(t *testing.T) {
	t.Parallel()

	body := `<body>
	<a href="/docs/changelog">版本更新 2026-08-01</a>
	<a href="/docs/changelog?utm_source=nav">版本更新重复</a>
	</body>`

	adapter, _ := Lookup("html_links")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://example.com/docs/",
		Body:      []byte(body),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected normalized-url dedup, got %d", len(out))
	}
	if out[0].Title != "版本更新 2026-08-01" {
		t.Fatalf("first occurrence must win: %q", out[0].Title)
	}
}

func TestHTMLLinksExtractDatesFromHrefPath(t *testing.T) {
	t.Parallel()

	body := `<body>
	<a href="/news/2026/08/12/platform-update">平台发布公告</a>
	</body>`

	adapter, _ := Lookup("html_links")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://news.example.com/news/",
		Body:      []byte(body),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if !out[0].PublishedAt.Equal(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("slash-dated path not picked up: %v", out[0].PublishedAt)
	}
}

func TestHTMLLinksPolicy(t *testing.T) {
	t.Parallel()

	adapter, _ := Lookup("html_links")
	policy := adapter.Policy()
	if !policy.UseBuckets || policy.OldFallback != 3 || policy.UndatedFallback != 5 {
		t.Fatalf("unexpected bucket policy: %+v", policy)
	}
	if !policy.ResolveDetailDates || !policy.ExpandGenericLinks {
		t.Fatalf("link scanner must resolve and expand: %+v", policy)
	}
	if policy.TermTag != "" || policy.DefaultMax != 0 {
		t.Fatalf("unexpected extras: %+v", policy)
	}
}
