package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindRSS handles RSS and Atom feeds.
const KindRSS = "rss"

type rssAdapter struct{}

func init() { register(rssAdapter{}, "atom", "feed") }

func (rssAdapter) Kind() string { return KindRSS }

func (rssAdapter) Policy() Policy {
	return Policy{
		UseBuckets:      true,
		OldFallback:     8,
		UndatedFallback: 8,
		DefaultMax:      10,
		TermTag:         "rss-feed",
	}
}

func (rssAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := watch.CleanFeatureText(item.Title)
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if title == "" || link == "" {
			continue
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		cand := Candidate{
			Title:            title,
			URL:              absoluteURL(req.SourceURL, link),
			HoverDescription: watch.CleanFeatureText(summary),
		}
		if cand.URL == "" {
			continue
		}
		switch {
		case item.PublishedParsed != nil:
			cand.PublishedAt = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			cand.PublishedAt = item.UpdatedParsed.UTC()
		default:
			if ts, ok := watch.ParseDateFromText(item.Published + " " + item.Updated); ok {
				cand.PublishedAt = ts
			}
		}
		out = append(out, cand)
	}
	return out, nil
}
