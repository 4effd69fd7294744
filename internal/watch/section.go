package watch

import (
	"context"
	"time"
)

// OutputSpecialFocus re-applies the window to official items; the
// competitor monitor does not.
const (
	OutputSpecialFocus      = "special-focus"
	OutputCompetitorMonitor = "competitor-monitor"

	SourceModeOfficialOnly = "official_only"
	SourceModeMixed        = "mixed"
)

// OfficialFetcher drives a category's declared official sources. It never
// fails as a whole: per-source problems come back as error strings.
type OfficialFetcher interface {
	FetchCategory(ctx context.Context, category Category, windowDays int) ([]Record, []string)
}

// FilterItemsByWindow keeps records whose event time falls inside the
// trailing window. Records with no resolvable timestamp are dropped, not
// kept forever. The window is at least one day.
func FilterItemsByWindow(items []Record, now time.Time, windowDays int) []Record {
	if windowDays < 1 {
		windowDays = 1
	}
	keepAfter := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	out := make([]Record, 0, len(items))
	for _, item := range items {
		ts := item.EventTime()
		if ts.IsZero() {
			continue
		}
		if !ts.Before(keepAfter) {
			out = append(out, item)
		}
	}
	return out
}

// BuildSection matches every record against the category, drops
// zero-score records, dedups by the category's identity key, ranks, and
// truncates. maxItems <= 0 means unlimited.
func BuildSection(items []Record, category Category, maxItems int) Section {
	titleOnly := category.ID == comboCategoryID

	scored := make([]Record, 0, len(items))
	for _, item := range items {
		score, terms := Match(item, category)
		if score <= 0 {
			continue
		}
		row := item
		row.WatchScore = score
		row.WatchMatchedTerms = terms
		scored = append(scored, row)
	}

	rows := Dedup(scored, titleOnly)
	SortRanked(rows)
	if maxItems > 0 && len(rows) > maxItems {
		rows = rows[:maxItems]
	}

	return Section{
		ID:    category.ID,
		Name:  category.Name,
		Count: len(rows),
		Items: rows,
	}
}

// PayloadRequest carries one build run's inputs.
type PayloadRequest struct {
	// Passthrough metadata from the upstream collector file.
	SourceGeneratedAt string
	SourceWindowHours int
	SourceTopicFilter string

	ArchiveItems []Record
	Categories   []Category
	MaxItems     int
	OutputName   string
	WindowDays   int

	// Fetcher may be nil, in which case official sources are skipped.
	Fetcher OfficialFetcher
}

// BuildPayload assembles the full dataset for one output: windows the
// archive stream, fetches official channels per category, matches,
// merges, and ranks. Categories are independent; per-source fetch
// failures surface as strings in OfficialErrors.
func BuildPayload(ctx context.Context, now time.Time, req PayloadRequest) Payload {
	windowDays := req.WindowDays
	if windowDays < 1 {
		windowDays = 1
	}
	strictWindow := req.OutputName == OutputSpecialFocus

	items := FilterItemsByWindow(req.ArchiveItems, now, windowDays)

	sections := make([]Section, 0, len(req.Categories))
	officialErrors := make([]string, 0)

	for _, category := range req.Categories {
		var officialItems []Record
		if req.Fetcher != nil && len(category.OfficialSources) > 0 {
			fetched, errs := req.Fetcher.FetchCategory(ctx, category, windowDays)
			officialErrors = append(officialErrors, errs...)
			officialItems = fetched
			if strictWindow {
				officialItems = FilterItemsByWindow(officialItems, now, windowDays)
			}
		}

		var section Section
		if category.OfficialOnly {
			rows := tagClass(officialItems, ClassOfficial, ClassLabelOfficial)
			SortByTime(rows)
			section = Section{
				ID:         category.ID,
				Name:       category.Name,
				Count:      len(rows),
				Items:      rows,
				SourceMode: SourceModeOfficialOnly,
			}
		} else {
			base := BuildSection(items, category, req.MaxItems)
			merged := MergeSectionItems(
				append(
					tagClass(base.Items, ClassOther, ClassLabelOther),
					tagClass(officialItems, ClassOfficial, ClassLabelOfficial)...,
				),
				req.MaxItems,
			)
			official := countClass(merged, ClassOfficial)
			other := countClass(merged, ClassOther)
			section = Section{
				ID:            category.ID,
				Name:          category.Name,
				Count:         len(merged),
				Items:         merged,
				SourceMode:    SourceModeMixed,
				OfficialCount: &official,
				OtherCount:    &other,
			}
		}

		if req.MaxItems > 0 && len(section.Items) > req.MaxItems {
			section.Items = section.Items[:req.MaxItems]
			section.Count = len(section.Items)
		}
		sections = append(sections, section)
	}

	totalItems := 0
	for _, section := range sections {
		totalItems += section.Count
	}

	return Payload{
		GeneratedAt:        FormatISO(now),
		WindowDays:         windowDays,
		SourceGeneratedAt:  req.SourceGeneratedAt,
		SourceWindowHours:  req.SourceWindowHours,
		SourceTopicFilter:  req.SourceTopicFilter,
		OutputName:         req.OutputName,
		SectionCount:       len(sections),
		TotalItems:         totalItems,
		OfficialErrorCount: len(officialErrors),
		OfficialErrors:     officialErrors,
		Sections:           sections,
	}
}

func tagClass(items []Record, class, label string) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		row := item
		row.MonitorClass = class
		row.MonitorClassLabel = label
		out = append(out, row)
	}
	return out
}

func countClass(items []Record, class string) int {
	n := 0
	for _, item := range items {
		if item.MonitorClass == class {
			n++
		}
	}
	return n
}
