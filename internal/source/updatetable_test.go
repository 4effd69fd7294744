package source

import (
	"context"
	"testing"
	"time"
)

const updateTableFixture = `<html><body>
<h2>2026年08月</h2>
<table>
  <tr><th>动态名称</th><th>动态描述</th><th>发布时间</th><th>相关文档</th></tr>
  <tr><td>知识库升级</td><td>支持多模态检索</td><td>2026-08-12</td><td><a href="/document/product/100/8">文档</a></td></tr>
  <tr><td>智能体调试器</td><td>新增断点调试</td><td>2026年8月5日</td><td></td></tr>
</table>
<h2>2026年07月</h2>
<table>
  <tr><th>动态名称</th><th>动态描述</th></tr>
  <tr><td>插件市场</td><td>上架 50 个插件</td></tr>
</table>
<table>
  <tr><th>字段</th><th>说明</th></tr>
  <tr><td>不是更新表</td><td>跳过</td></tr>
</table>
</body></html>`

func TestUpdateTableExtractMonthlyDigest(t *testing.T) {
	t.Parallel()

	adapter, _ := Lookup("update_table")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://cloud.example.com/document/product/100/1",
		Body:      []byte(updateTableFixture),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 monthly digests, got %d", len(out))
	}

	first := out[0]
	if first.Title != "腾讯云ADP更新动态【2026年08月】" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month date: %v", first.PublishedAt)
	}
	if first.URL != "https://cloud.example.com/document/product/100/1#adp-update-202608" {
		t.Fatalf("unexpected anchor: %q", first.URL)
	}
	if len(first.DetailPoints) != 2 ||
		first.DetailPoints[0] != "知识库升级：支持多模态检索" ||
		first.DetailPoints[1] != "智能体调试器：新增断点调试" {
		t.Fatalf("unexpected points: %v", first.DetailPoints)
	}

	second := out[1]
	if second.Title != "腾讯云ADP更新动态【2026年07月】" {
		t.Fatalf("unexpected second title: %q", second.Title)
	}
	if !second.PublishedAt.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected second date: %v", second.PublishedAt)
	}
}

func TestUpdateTableRowsExtract(t *testing.T) {
	t.Parallel()

	adapter, _ := Lookup("update_table_rows")
	out, err := adapter.Extract(context.Background(), Request{
		SourceURL: "https://cloud.example.com/document/product/100/1",
		Body:      []byte(updateTableFixture),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	// The July table has only 2 columns, its row is skipped.
	if len(out) != 2 {
		t.Fatalf("expected 2 row candidates, got %d", len(out))
	}

	first := out[0]
	if first.Title != "知识库升级" || first.Description != "支持多模态检索" {
		t.Fatalf("unexpected row candidate: %+v", first)
	}
	if !first.PublishedAt.Equal(time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected row date: %v", first.PublishedAt)
	}
	if first.URL != "https://cloud.example.com/document/product/100/8" {
		t.Fatalf("expected doc link from fourth column: %q", first.URL)
	}

	second := out[1]
	if !second.PublishedAt.Equal(time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("cjk date column: %v", second.PublishedAt)
	}
	if second.URL != "https://cloud.example.com/document/product/100/1#adp-update-2" {
		t.Fatalf("expected synthetic anchor for linkless row: %q", second.URL)
	}
}

func TestUpdateTablePolicy(t *testing.T) {
	t.Parallel()

	adapter, _ := Lookup("update_table")
	policy := adapter.Policy()
	if !policy.UseBuckets || policy.OldFallback != 8 || policy.UndatedFallback != 8 {
		t.Fatalf("unexpected bucket policy: %+v", policy)
	}
	if policy.DefaultMax != 0 || policy.TermTag != "table-update" {
		t.Fatalf("unexpected cap policy: %+v", policy)
	}
}
