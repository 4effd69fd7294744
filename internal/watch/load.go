package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// WatchlistDefaults carries the shared knobs of a watchlist config file.
type WatchlistDefaults struct {
	MaxItemsPerBucket int `json:"max_items_per_bucket"`
}

// WatchlistFile is the declarative watchlist configuration: category
// definitions for both outputs plus defaults.
type WatchlistFile struct {
	Defaults          WatchlistDefaults `json:"defaults"`
	SpecialFocus      []CategoryRow     `json:"special_focus"`
	CompetitorMonitor []CategoryRow     `json:"competitor_monitor"`
}

// MaxItems returns the per-bucket item cap, defaulting to 120.
func (f *WatchlistFile) MaxItems() int {
	if f == nil || f.Defaults.MaxItemsPerBucket <= 0 {
		return 120
	}
	return f.Defaults.MaxItemsPerBucket
}

type archiveFile struct {
	Items []Record `json:"items"`
}

// LatestMeta is the passthrough metadata of the upstream collector file.
type LatestMeta struct {
	GeneratedAt string `json:"generated_at"`
	TopicFilter string `json:"topic_filter"`
	WindowHours int    `json:"window_hours"`
}

// LoadArchive reads the pre-collected record pool. Records without a
// title or URL are silently dropped (malformed-candidate policy).
func LoadArchive(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	var parsed archiveFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", path, err)
	}

	out := make([]Record, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.URL) == "" {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// LoadLatestMeta reads the upstream collector metadata. A missing file is
// not fatal: the passthrough fields stay empty.
func LoadLatestMeta(path string) (LatestMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LatestMeta{}, nil
		}
		return LatestMeta{}, fmt.Errorf("read latest %s: %w", path, err)
	}

	var meta LatestMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return LatestMeta{}, fmt.Errorf("decode latest %s: %w", path, err)
	}
	return meta, nil
}
