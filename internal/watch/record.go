// Package watch implements the watchlist core: canonicalization, timestamp
// resolution, category matching, dedup/merge, and section assembly.
package watch

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Monitor provenance classes.
const (
	ClassOfficial = "official"
	ClassOther    = "other"

	ClassLabelOfficial = "官方公告"
	ClassLabelOther    = "其他来源"
)

// DetailGroup is a titled bullet list attached to digest-style records.
type DetailGroup struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
}

// Record is one candidate update surfaced from any source. Timestamps are
// ISO-8601 UTC strings; an empty string means absent.
type Record struct {
	ID                string        `json:"id,omitempty"`
	SiteID            string        `json:"site_id,omitempty"`
	SiteName          string        `json:"site_name,omitempty"`
	Source            string        `json:"source,omitempty"`
	Title             string        `json:"title"`
	TitleOriginal     string        `json:"title_original,omitempty"`
	TitleZH           string        `json:"title_zh,omitempty"`
	TitleEN           string        `json:"title_en,omitempty"`
	URL               string        `json:"url"`
	PublishedAt       string        `json:"published_at,omitempty"`
	FirstSeenAt       string        `json:"first_seen_at,omitempty"`
	Language          string        `json:"language,omitempty"`
	WatchScore        int           `json:"watch_score,omitempty"`
	WatchMatchedTerms []string      `json:"watch_matched_terms,omitempty"`
	DetailPoints      []string      `json:"detail_points,omitempty"`
	DetailGroups      []DetailGroup `json:"detail_groups,omitempty"`
	HoverDescription  string        `json:"hover_description,omitempty"`
	AutoExpandDetails bool          `json:"auto_expand_details,omitempty"`
	MonitorClass      string        `json:"monitor_class,omitempty"`
	MonitorClassLabel string        `json:"monitor_class_label,omitempty"`
}

// EventTime resolves a record's comparison timestamp: published_at when
// parseable, otherwise first_seen_at, otherwise the zero time.
func (r Record) EventTime() time.Time {
	if ts, ok := ParseISO(r.PublishedAt); ok {
		return ts
	}
	if ts, ok := ParseISO(r.FirstSeenAt); ok {
		return ts
	}
	return time.Time{}
}

// SourceDescriptor declares one official channel for a category. In the
// configuration file a bare URL string is shorthand for {"url": ...}.
type SourceDescriptor struct {
	URL          string            `json:"url"`
	Label        string            `json:"label,omitempty"`
	Parser       string            `json:"parser,omitempty"`
	MaxItems     int               `json:"max_items,omitempty"`
	FeatureItems int               `json:"feature_items,omitempty"`
	Method       string            `json:"method,omitempty"`
	Payload      map[string]any    `json:"payload,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	HeadersEnv   string            `json:"headers_env,omitempty"`
	CookieEnv    string            `json:"cookie_env,omitempty"`
}

func (d *SourceDescriptor) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var u string
		if err := json.Unmarshal(raw, &u); err != nil {
			return err
		}
		*d = SourceDescriptor{URL: strings.TrimSpace(u)}
		return nil
	}

	type alias SourceDescriptor
	var decoded alias
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	decoded.URL = strings.TrimSpace(decoded.URL)
	decoded.Label = strings.TrimSpace(decoded.Label)
	*d = SourceDescriptor(decoded)
	return nil
}

// ParserKind returns the normalized parser tag for adapter selection.
func (d SourceDescriptor) ParserKind() string {
	return strings.ToLower(strings.TrimSpace(d.Parser))
}

// Category is an immutable topic/competitor watch definition.
type Category struct {
	ID              string
	Name            string
	Keywords        []string
	ExcludeKeywords []string
	Domains         []string
	OfficialSources []SourceDescriptor
	OfficialOnly    bool
}

// CategoryRow is the raw configuration shape for one category.
type CategoryRow struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Keywords        []string           `json:"keywords"`
	ExcludeKeywords []string           `json:"exclude_keywords"`
	Domains         []string           `json:"domains"`
	OfficialSources []SourceDescriptor `json:"official_sources"`
	OfficialOnly    bool               `json:"official_only"`
}

// NormalizeCategories converts raw configuration rows into validated
// categories. Rows without an id or without keywords are skipped, not
// fatal (configuration error policy).
func NormalizeCategories(rows []CategoryRow) []Category {
	out := make([]Category, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.ID)
		name := strings.TrimSpace(row.Name)
		if name == "" {
			name = id
		}
		keywords := normalizeTermList(row.Keywords)
		if id == "" || len(keywords) == 0 {
			continue
		}
		sources := make([]SourceDescriptor, 0, len(row.OfficialSources))
		for _, src := range row.OfficialSources {
			if src.URL == "" {
				continue
			}
			sources = append(sources, src)
		}
		out = append(out, Category{
			ID:              id,
			Name:            name,
			Keywords:        keywords,
			ExcludeKeywords: normalizeTermList(row.ExcludeKeywords),
			Domains:         normalizeTermList(row.Domains),
			OfficialSources: sources,
			OfficialOnly:    row.OfficialOnly,
		})
	}
	return out
}

func normalizeTermList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		term := strings.ToLower(strings.TrimSpace(v))
		if term == "" {
			continue
		}
		out = append(out, term)
	}
	return out
}

// Section is the final per-category slice of a payload.
type Section struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Count         int      `json:"count"`
	Items         []Record `json:"items"`
	SourceMode    string   `json:"source_mode,omitempty"`
	OfficialCount *int     `json:"official_count,omitempty"`
	OtherCount    *int     `json:"other_count,omitempty"`
}

// Payload is the full output of one build run.
type Payload struct {
	GeneratedAt        string    `json:"generated_at"`
	WindowDays         int       `json:"window_days"`
	SourceGeneratedAt  string    `json:"source_generated_at,omitempty"`
	SourceWindowHours  int       `json:"source_window_hours,omitempty"`
	SourceTopicFilter  string    `json:"source_topic_filter,omitempty"`
	OutputName         string    `json:"output_name"`
	SectionCount       int       `json:"section_count"`
	TotalItems         int       `json:"total_items"`
	OfficialErrorCount int       `json:"official_error_count"`
	OfficialErrors     []string  `json:"official_errors"`
	Sections           []Section `json:"sections"`
}

// FormatISO renders a UTC instant the way the datasets expect, or ""
// for the zero time.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ContentID derives the stable record id used for official records.
func ContentID(categoryID, url, title string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", categoryID, url, title)))
	return hex.EncodeToString(sum[:])
}
