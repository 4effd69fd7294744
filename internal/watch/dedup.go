package watch

import "sort"

type identityKey struct {
	title string
	url   string
}

// recordKey builds the dedup identity for a record. Categories with heavy
// cross-source reposting of identical titles (the combo category) key by
// cleaned title alone so mirrors under different URLs collapse.
func recordKey(r Record, titleOnly bool) identityKey {
	if titleOnly {
		return identityKey{title: CanonicalTitleKey(r)}
	}
	return identityKey{
		title: CanonicalTitle(r),
		url:   NormalizeURL(r.URL),
	}
}

// Less orders records ascending by (score, event time, id). The inverse
// of this order is the ranking used everywhere: dedup winners, section
// ranking, and merge. The id tiebreak makes the order strictly total.
func Less(a, b Record) bool {
	if a.WatchScore != b.WatchScore {
		return a.WatchScore < b.WatchScore
	}
	at, bt := a.EventTime(), b.EventTime()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return a.ID < b.ID
}

// lessByTime orders records by (event time, id) only; used for
// official-only sections where every record carries the same score.
func lessByTime(a, b Record) bool {
	at, bt := a.EventTime(), b.EventTime()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return a.ID < b.ID
}

// Dedup collapses duplicate records by identity key, keeping the
// highest-ranked representative per key. Input order is preserved for
// the surviving records (first occurrence position). Idempotent.
func Dedup(items []Record, titleOnly bool) []Record {
	best := make(map[identityKey]int, len(items))
	order := make([]identityKey, 0, len(items))
	winners := make(map[identityKey]Record, len(items))

	for i, item := range items {
		key := recordKey(item, titleOnly)
		if _, seen := best[key]; !seen {
			best[key] = i
			order = append(order, key)
			winners[key] = item
			continue
		}
		if Less(winners[key], item) {
			winners[key] = item
		}
	}

	out := make([]Record, 0, len(order))
	for _, key := range order {
		out = append(out, winners[key])
	}
	return out
}

// SortRanked sorts records descending by (score, event time, id).
func SortRanked(items []Record) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[j], items[i])
	})
}

// SortByTime sorts records descending by (event time, id).
func SortByTime(items []Record) {
	sort.SliceStable(items, func(i, j int) bool {
		return lessByTime(items[j], items[i])
	})
}

// MergeSectionItems unions official and other provenance streams for one
// category: dedup by the standard identity key, rank, truncate.
// maxItems <= 0 means unlimited.
func MergeSectionItems(items []Record, maxItems int) []Record {
	out := Dedup(items, false)
	SortRanked(out)
	if maxItems > 0 && len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}
