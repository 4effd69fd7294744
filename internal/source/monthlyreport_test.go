package source

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

const monthlyFeedFixture = `<html><body>
<a class="feed-item-content-title" href="/article/1001"><h3>百炼产品月报（2026年7月）</h3></a>
<a class="feed-item-content-title" href="/article/1001"><h3>产品月报</h3></a>
<a class="feed-item-content-title" href="/article/999"><h3>与月报无关的文章</h3></a>
<a class="slide-banner-content" href="/article/1000"><img alt="百炼产品月刊 2026年6月"></a>
</body></html>`

const monthlyDetailFixture = `<html>
<head><title>百炼产品月报（2026年7月）-阿里云开发者社区</title></head>
<body>
<h1 class="article-title">百炼产品月报（2026年7月）</h1>
<div class="meta">2026-08-05</div>
<script>
GLOBAL_CONFIG.larkContent = '<h2>核心升级</h2><p><strong>新模型上线</strong>，支持更长上下文。</p><h2>产品动态</h2><h3>模型服务</h3><ul><li>要点一</li><li>要点二</li></ul><p>很短的组标题</p><ul><li>要点三</li></ul><h2>其他</h2><ul><li>不采集</li></ul>';
</script>
</body></html>`

func TestExtractLarkContent(t *testing.T) {
	t.Parallel()

	got := ExtractLarkContent(monthlyDetailFixture)
	if !strings.Contains(got, "<h2>核心升级</h2>") {
		t.Fatalf("lark content not extracted: %q", got)
	}
	if !strings.Contains(got, "新模型上线") {
		t.Fatalf("unicode escapes not decoded: %q", got)
	}
}

func TestDecodeJSStringLiteral(t *testing.T) {
	t.Parallel()

	if got := decodeJSStringLiteral(`a\nb\t中文`); got != "a\nb\t中文" {
		t.Fatalf("basic escapes: %q", got)
	}
	// Surrogate pair for an emoji.
	if got := decodeJSStringLiteral(`😀`); got != "😀" {
		t.Fatalf("surrogate pair: %q", got)
	}
	// Unpaired surrogate degrades to the replacement rune.
	if got := decodeJSStringLiteral(`\ud83dx`); got != "�x" {
		t.Fatalf("unpaired surrogate: %q", got)
	}
	if got := decodeJSStringLiteral(`\'quoted\'`); got != "'quoted'" {
		t.Fatalf("quote escapes: %q", got)
	}
}

func TestMonthlyReportFeatures(t *testing.T) {
	t.Parallel()

	points := monthlyReportFeatures(monthlyDetailFixture, 10)
	if len(points) != 4 {
		t.Fatalf("unexpected features: %v", points)
	}
	if points[0] != "新模型上线" {
		t.Fatalf("strong lead of 核心升级 must come first: %v", points)
	}
	for _, p := range points {
		if p == "不采集" {
			t.Fatalf("sections outside the digest must be ignored: %v", points)
		}
	}
}

func TestMonthlyReportProductGroups(t *testing.T) {
	t.Parallel()

	groups := monthlyReportProductGroups(monthlyDetailFixture, 10)
	if len(groups) != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].Title != "模型服务" || len(groups[0].Bullets) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[1].Title != "很短的组标题" || groups[1].Bullets[0] != "要点三" {
		t.Fatalf("short strong-free paragraph should open a group: %+v", groups[1])
	}
}

func TestArticleTitle(t *testing.T) {
	t.Parallel()

	if got := articleTitle(monthlyDetailFixture); got != "百炼产品月报（2026年7月）" {
		t.Fatalf("unexpected article title: %q", got)
	}
	page := `<html><head><title>百炼产品月报 - 阿里云开发者社区</title></head><body></body></html>`
	if got := articleTitle(page); got != "百炼产品月报" {
		t.Fatalf("community suffix not trimmed: %q", got)
	}
}

func TestMonthlyReportExtract(t *testing.T) {
	t.Parallel()

	fetchedURLs := make([]string, 0, 2)
	fetch := func(_ context.Context, url string) ([]byte, error) {
		fetchedURLs = append(fetchedURLs, url)
		if strings.HasSuffix(url, "/article/1001") {
			return []byte(monthlyDetailFixture), nil
		}
		return nil, fmt.Errorf("not found")
	}

	adapter, _ := Lookup("monthly_report")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://developer.example.com/group/bailian",
		Body:      []byte(monthlyFeedFixture),
		Fetch:     fetch,
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 report candidates, got %d", len(out))
	}

	first := out[0]
	if first.URL != "https://developer.example.com/article/1001" {
		t.Fatalf("dated report must sort first: %+v", first)
	}
	if first.Title != "百炼产品月报（2026年7月）" {
		t.Fatalf("article title must replace the card title: %q", first.Title)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected report date: %v", first.PublishedAt)
	}
	if len(first.DetailGroups) != 2 {
		t.Fatalf("expected product groups: %+v", first.DetailGroups)
	}
	// Grouped bullets replace the flat feature list.
	if len(first.DetailPoints) != 3 || first.DetailPoints[0] != "模型服务：要点一" {
		t.Fatalf("unexpected flattened points: %v", first.DetailPoints)
	}

	// The failed detail fetch keeps the card title and no points.
	second := out[1]
	if second.Title != "百炼产品月刊 2026年6月" || len(second.DetailPoints) != 0 {
		t.Fatalf("unexpected fallback candidate: %+v", second)
	}
}

func TestBetterReportTitle(t *testing.T) {
	t.Parallel()

	if !betterReportTitle("百炼产品月报（2026年7月）", "产品月报") {
		t.Fatal("month-qualified title must outrank the bare one")
	}
	if betterReportTitle("产品月报", "百炼产品月报（2026年7月）") {
		t.Fatal("bare title must not outrank the month-qualified one")
	}
}
