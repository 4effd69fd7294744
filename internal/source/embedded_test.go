package source

import (
	"testing"
	"time"
)

const hydrationFixture = `<html><body>
<script>
window.__staticRouterHydrationData = JSON.parse("{\"loaderData\":{\"route0\":{\"announcements\":[{\"title\":\"平台新版本升级公告\",\"url\":\"https:\/\/cloud.example.com\/document\/product\/100\/7\",\"recentReleaseTime\":\"2026-08-10\"},{\"title\":\"产品公告\",\"url\":\"https:\/\/cloud.example.com\/document\/product\/100\/8\"},{\"title\":\"外站文章\",\"url\":\"https:\/\/other.example.com\/post\"}]}}}");
</script>
</body></html>`

func TestExtractEmbeddedLinkCandidatesHydration(t *testing.T) {
	t.Parallel()

	out := ExtractEmbeddedLinkCandidates("https://cloud.example.com/document/product/100/1", []byte(hydrationFixture))
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(out), out)
	}
	cand := out[0]
	if cand.Title != "平台新版本升级公告" {
		t.Fatalf("unexpected title: %q", cand.Title)
	}
	if cand.URL != "https://cloud.example.com/document/product/100/7" {
		t.Fatalf("unexpected url: %q", cand.URL)
	}
	if !cand.PublishedAt.Equal(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", cand.PublishedAt)
	}
}

func TestExtractEmbeddedLinkCandidatesRegexPass(t *testing.T) {
	t.Parallel()

	body := `<script>var data = {"list":[
		{"title":"知识引擎版本发布","url":"\/document\/product\/100\/9","recentReleaseTime":"2026-08-02"},
		{"url":"\/document\/product\/100\/9","title":"查看更多"}
	]};</script>`

	out := ExtractEmbeddedLinkCandidates("https://cloud.example.com/document/product/100/1", []byte(body))
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(out), out)
	}
	if out[0].Title != "知识引擎版本发布" {
		t.Fatalf("unexpected title: %q", out[0].Title)
	}
	if !out[0].PublishedAt.Equal(time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", out[0].PublishedAt)
	}
}

func TestExtractEmbeddedLinkCandidatesUpgradeWins(t *testing.T) {
	t.Parallel()

	body := `{"title":"组件介绍","url":"\/document\/product\/100\/3"}
{"title":"组件升级说明","url":"\/document\/product\/100\/3"}`

	out := ExtractEmbeddedLinkCandidates("https://cloud.example.com/document/product/100/1", []byte(body))
	if len(out) != 1 {
		t.Fatalf("expected collision to collapse, got %d", len(out))
	}
	if out[0].Title != "组件升级说明" {
		t.Fatalf("upgrade title must win the collision: %q", out[0].Title)
	}
}
