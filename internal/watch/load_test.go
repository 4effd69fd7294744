package watch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.json")
	content := `{
		"items": [
			{"title": "Kept", "url": "https://example.com/a"},
			{"title": "  ", "url": "https://example.com/b"},
			{"title": "No URL", "url": ""}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	items, err := LoadArchive(path)
	if err != nil {
		t.Fatalf("LoadArchive failed: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Kept" {
		t.Fatalf("expected malformed rows dropped, got %+v", items)
	}

	if _, err := LoadArchive(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestLoadLatestMeta(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "latest.json")
	content := `{"generated_at": "2026-08-20T00:00:00Z", "topic_filter": "ai", "window_hours": 24}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write latest: %v", err)
	}

	meta, err := LoadLatestMeta(path)
	if err != nil {
		t.Fatalf("LoadLatestMeta failed: %v", err)
	}
	if meta.GeneratedAt != "2026-08-20T00:00:00Z" || meta.WindowHours != 24 || meta.TopicFilter != "ai" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	// Missing upstream file is not fatal.
	meta, err = LoadLatestMeta(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing latest file must not error: %v", err)
	}
	if meta != (LatestMeta{}) {
		t.Fatalf("expected empty meta, got %+v", meta)
	}
}

func TestWatchlistFileMaxItems(t *testing.T) {
	t.Parallel()

	var file *WatchlistFile
	if got := file.MaxItems(); got != 120 {
		t.Fatalf("nil file default: %d", got)
	}
	file = &WatchlistFile{}
	if got := file.MaxItems(); got != 120 {
		t.Fatalf("zero default: %d", got)
	}
	file.Defaults.MaxItemsPerBucket = 40
	if got := file.MaxItems(); got != 40 {
		t.Fatalf("configured cap: %d", got)
	}
}

func TestSourceDescriptorUnmarshal(t *testing.T) {
	t.Parallel()

	var d SourceDescriptor
	if err := d.UnmarshalJSON([]byte(`" https://example.com/rss "`)); err != nil {
		t.Fatalf("string shorthand failed: %v", err)
	}
	if d.URL != "https://example.com/rss" || d.Parser != "" {
		t.Fatalf("unexpected shorthand descriptor: %+v", d)
	}

	raw := `{"url": "https://example.com/api", "label": " API ", "parser": "notice_api", "method": "POST"}`
	if err := d.UnmarshalJSON([]byte(raw)); err != nil {
		t.Fatalf("object form failed: %v", err)
	}
	if d.URL != "https://example.com/api" || d.Label != "API" || d.ParserKind() != "notice_api" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}
