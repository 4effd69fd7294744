package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/katharinadi0523-create/ai-news-radar/internal/globaltime"
	"github.com/katharinadi0523-create/ai-news-radar/internal/source"
	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

const maxGenericExpansions = 3

// Officials fetches a category's declared official channels in parallel
// and turns adapter candidates into provenance-tagged records. It
// implements watch.OfficialFetcher.
type Officials struct {
	client  *Client
	workers int
	log     zerolog.Logger
}

func NewOfficials(client *Client, workers int, log zerolog.Logger) *Officials {
	if workers < 1 {
		workers = 1
	}
	return &Officials{client: client, workers: workers, log: log}
}

type sourceResult struct {
	items []watch.Record
	errs  []string
}

// FetchCategory runs every source of the category concurrently, bounded
// by the worker limit. Per-source failures become error strings; the
// fetch never fails as a whole. Results keep the declared source order
// and are deduplicated by identity key at the end.
func (o *Officials) FetchCategory(ctx context.Context, category watch.Category, windowDays int) ([]watch.Record, []string) {
	now := globaltime.UTC()
	if windowDays < 1 {
		windowDays = 1
	}
	keepAfter := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	details := newDetailCache(o.client)
	results := make([]sourceResult, len(category.OfficialSources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, src := range category.OfficialSources {
		i, src := i, src
		g.Go(func() error {
			results[i] = o.fetchSource(gctx, category, src, now, keepAfter, details)
			return nil
		})
	}
	_ = g.Wait()

	var items []watch.Record
	var errs []string
	for _, res := range results {
		items = append(items, res.items...)
		errs = append(errs, res.errs...)
	}
	return watch.Dedup(items, false), errs
}

func (o *Officials) fetchSource(ctx context.Context, category watch.Category, src watch.SourceDescriptor, now, keepAfter time.Time, details *detailCache) sourceResult {
	var res sourceResult
	fail := func(err error) sourceResult {
		res.errs = append(res.errs, fmt.Sprintf("%s: %v", src.URL, err))
		return res
	}

	body, err := o.client.FetchSource(ctx, src)
	if err != nil {
		return fail(err)
	}

	adapter, ok := source.Lookup(src.ParserKind())
	if !ok {
		adapter, _ = source.Lookup("")
	}
	policy := adapter.Policy()

	pageDate, _ := watch.ParseDateFromHTML(string(body))

	req := source.Request{
		Source:        src,
		SourceURL:     src.URL,
		Body:          body,
		Keywords:      category.Keywords,
		FallbackTitle: category.Name + " 官方更新",
		Fetch:         details.fetch,
	}
	candidates, err := adapter.Extract(ctx, req)
	if err != nil {
		return fail(err)
	}

	if policy.ExpandGenericLinks {
		candidates = o.expandGenericLinks(ctx, candidates, details)
	}

	selected := selectCandidates(candidates, policy, src.MaxItems, keepAfter)
	if len(selected) == 0 {
		return res
	}

	sourceHost := watch.HostOfURL(src.URL)
	labelPrefix := ""
	if src.Label != "" {
		labelPrefix = fmt.Sprintf("【%s】 ", src.Label)
	}

	for _, cand := range selected {
		title := cand.Title
		if title == "" {
			title = req.FallbackTitle
		}
		url := cand.URL
		if url == "" {
			url = src.URL
		}

		eventTime := cand.PublishedAt
		if eventTime.IsZero() && policy.ResolveDetailDates && url != "" {
			eventTime = details.pageDate(ctx, url)
		}
		if eventTime.IsZero() {
			eventTime = pageDate
		}

		terms := []string{"official-source"}
		if policy.TermTag != "" && (!policy.TagRequiresPoints || len(cand.DetailPoints) > 0) {
			terms = append(terms, policy.TermTag)
		}

		hover := cand.Description
		if hover == "" {
			hover = cand.HoverDescription
		}

		res.items = append(res.items, watch.Record{
			ID:                watch.ContentID(category.ID, url, title),
			SiteID:            "official",
			SiteName:          "Official",
			Source:            "官方渠道: " + labelPrefix + sourceHost,
			Title:             title,
			URL:               url,
			PublishedAt:       watch.FormatISO(eventTime),
			FirstSeenAt:       watch.FormatISO(now),
			WatchScore:        90,
			WatchMatchedTerms: terms,
			DetailPoints:      cand.DetailPoints,
			DetailGroups:      cand.DetailGroups,
			HoverDescription:  hover,
			AutoExpandDetails: len(cand.DetailPoints) > 0,
		})
	}
	return res
}

// expandGenericLinks follows up to three generic announcement index
// links one hop and merges the concrete rows embedded in those pages.
// Expansion failures are silent; the listing page rows still stand.
func (o *Officials) expandGenericLinks(ctx context.Context, candidates []source.Candidate, details *detailCache) []source.Candidate {
	order := make([]string, 0, len(candidates))
	byURL := make(map[string]source.Candidate, len(candidates))
	upsert := func(cand source.Candidate) {
		if _, seen := byURL[cand.URL]; !seen {
			order = append(order, cand.URL)
		}
		byURL[cand.URL] = cand
	}
	for _, cand := range candidates {
		upsert(cand)
	}

	expanded := 0
	for _, cand := range candidates {
		if expanded >= maxGenericExpansions {
			break
		}
		if !watch.IsGenericAnnouncementTitle(cand.Title) {
			continue
		}
		expanded++
		body, err := details.fetch(ctx, cand.URL)
		if err != nil {
			o.log.Debug().Str("url", cand.URL).Err(err).Msg("generic link expansion failed")
			continue
		}
		for _, row := range source.ExtractEmbeddedLinkCandidates(cand.URL, body) {
			if row.Title == "" || row.URL == "" || watch.IsGenericAnnouncementTitle(row.Title) {
				continue
			}
			upsert(row)
		}
	}

	out := make([]source.Candidate, 0, len(order))
	for _, url := range order {
		cand := byURL[url]
		if watch.IsGenericAnnouncementTitle(cand.Title) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// selectCandidates applies the adapter policy: either the three-bucket
// recency partition or a plain cap over the adapter's own ordering.
func selectCandidates(candidates []source.Candidate, policy source.Policy, maxItems int, keepAfter time.Time) []source.Candidate {
	keep := maxItems
	if keep <= 0 {
		keep = policy.DefaultMax
	}

	selected := candidates
	if policy.UseBuckets {
		var recent, old, undated []source.Candidate
		for _, cand := range candidates {
			switch {
			case cand.PublishedAt.IsZero():
				undated = append(undated, cand)
			case !cand.PublishedAt.Before(keepAfter):
				recent = append(recent, cand)
			default:
				old = append(old, cand)
			}
		}
		sortByDateDesc(recent)
		sortByDateDesc(old)

		selected = recent
		if len(selected) == 0 {
			selected = head(old, policy.OldFallback)
		}
		if len(selected) == 0 {
			selected = head(undated, policy.UndatedFallback)
		}
	}

	return head(selected, keep)
}

func head(rows []source.Candidate, n int) []source.Candidate {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

func sortByDateDesc(rows []source.Candidate) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PublishedAt.After(rows[j].PublishedAt)
	})
}

// detailCache memoizes detail page fetches within one category run so
// date resolution, title lookup and expansion share downloads. A
// concurrent duplicate fetch of the same URL is tolerated.
type detailCache struct {
	client *Client

	mu     sync.Mutex
	bodies map[string]detailEntry
}

type detailEntry struct {
	body []byte
	err  error
}

func newDetailCache(client *Client) *detailCache {
	return &detailCache{client: client, bodies: make(map[string]detailEntry)}
}

func (c *detailCache) fetch(ctx context.Context, url string) ([]byte, error) {
	c.mu.Lock()
	if entry, ok := c.bodies[url]; ok {
		c.mu.Unlock()
		return entry.body, entry.err
	}
	c.mu.Unlock()

	body, err := c.client.Get(ctx, url)
	c.mu.Lock()
	c.bodies[url] = detailEntry{body: body, err: err}
	c.mu.Unlock()
	return body, err
}

func (c *detailCache) pageDate(ctx context.Context, url string) time.Time {
	body, err := c.fetch(ctx, url)
	if err != nil {
		return time.Time{}
	}
	if ts, ok := watch.ParseDateFromHTML(string(body)); ok {
		return ts
	}
	return time.Time{}
}
