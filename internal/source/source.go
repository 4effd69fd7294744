// Package source holds the per-kind adapters that turn one official
// channel's raw payload into candidate update rows. Each adapter is a
// narrow, format-specific extractor behind a shared interface; the
// fetch layer owns selection, capping, and record assembly.
package source

import (
	"context"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// Candidate is one raw update row surfaced by an adapter. A zero
// PublishedAt means undated.
type Candidate struct {
	Title            string
	URL              string
	PublishedAt      time.Time
	DetailPoints     []string
	DetailGroups     []watch.DetailGroup
	Description      string
	HoverDescription string
}

// FetchFunc performs a follow-up GET through the shared HTTP client.
// Adapters use it for detail pages and API rewrites only.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Request carries everything an adapter may need to extract candidates
// from one fetched source payload.
type Request struct {
	Source        watch.SourceDescriptor
	SourceURL     string
	Body          []byte
	Keywords      []string
	FallbackTitle string
	Fetch         FetchFunc
}

// FeatureLimit returns the per-row detail point cap, at least 1,
// defaulting per adapter kind.
func (r Request) FeatureLimit(fallback int) int {
	limit := r.Source.FeatureItems
	if limit <= 0 {
		limit = fallback
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Policy declares how the fetcher selects rows from an adapter's output.
type Policy struct {
	// UseBuckets enables the three-way recency partition (recent, old,
	// undated) with bounded fallback slices. Without buckets the rows
	// are ranked by date and capped directly.
	UseBuckets      bool
	OldFallback     int
	UndatedFallback int

	// DefaultMax caps selected rows when the descriptor sets no
	// max_items; 0 means unlimited.
	DefaultMax int

	// ResolveDetailDates fetches detail pages for undated selected rows
	// before falling back to the listing page date.
	ResolveDetailDates bool

	// ExpandGenericLinks enables the bounded one-hop expansion of
	// generic announcement index links, and drops generic titles from
	// the final selection.
	ExpandGenericLinks bool

	// TermTag is appended to watch_matched_terms next to
	// "official-source"; empty means no extra tag.
	TermTag string

	// TagRequiresPoints limits the TermTag to rows that carry detail
	// points.
	TagRequiresPoints bool
}

// Adapter converts one source kind's raw payload into candidate rows.
type Adapter interface {
	Kind() string
	Policy() Policy
	Extract(ctx context.Context, req Request) ([]Candidate, error)
}

var registry = map[string]Adapter{}

func register(a Adapter, aliases ...string) {
	registry[a.Kind()] = a
	for _, alias := range aliases {
		registry[alias] = a
	}
}

// Lookup resolves an adapter by parser kind. The empty kind falls back
// to the generic HTML link scanner.
func Lookup(kind string) (Adapter, bool) {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		k = KindHTMLLinks
	}
	a, ok := registry[k]
	return a, ok
}

// absoluteURL resolves ref against base the way browsers do. Returns ""
// when the result is not an http(s) URL.
func absoluteURL(base, ref string) string {
	trimmedRef := strings.TrimSpace(ref)
	if trimmedRef == "" {
		return ""
	}
	parsedBase, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return ""
	}
	parsedRef, err := url.Parse(trimmedRef)
	if err != nil {
		return ""
	}
	resolved := parsedBase.ResolveReference(parsedRef).String()
	if !strings.HasPrefix(resolved, "http") {
		return ""
	}
	return resolved
}

// scopePath derives the path prefix used to keep extracted links on the
// same documentation section. Vendor doc trees under
// /document/product/<id> scope to the first three segments.
func scopePath(sourceURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return ""
	}
	path := strings.TrimRight(parsed.Path, "/")
	segs := splitPathSegments(path)
	if len(segs) >= 3 && segs[0] == "document" && segs[1] == "product" {
		return "/" + strings.Join(segs[:3], "/")
	}
	return path
}

func splitPathSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func inScope(scope, rawURL string) bool {
	if scope == "" || scope == "/" {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	hrefPath := strings.TrimRight(parsed.Path, "/")
	return hrefPath == scope || strings.HasPrefix(hrefPath, scope+"/")
}

// sortCandidatesByDate orders candidates newest first. Undated rows sort
// last; ties keep their input order.
func sortCandidatesByDate(rows []Candidate) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PublishedAt.After(rows[j].PublishedAt)
	})
}

// decodeEscapedText unwraps JS/JSON string escapes (\u, \n, \") found in
// script-embedded payloads and HTML entities. Undecodable input is
// returned as-is.
func decodeEscapedText(s string) string {
	if s == "" {
		return ""
	}
	out := strings.ReplaceAll(s, `\/`, "/")
	if strings.ContainsAny(out, `\`) {
		if decoded, err := strconv.Unquote(`"` + strings.ReplaceAll(out, `"`, `\"`) + `"`); err == nil {
			out = decoded
		}
	}
	return strings.TrimSpace(html.UnescapeString(out))
}
