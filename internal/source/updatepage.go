package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindUpdatePage handles changelog pages laid out as dated h2 headings
// followed by tagged paragraphs and bullet lists.
const KindUpdatePage = "update_page"

var (
	fullDatePattern   = regexp.MustCompile(`20\d{2}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日`)
	bracketTagPattern = regexp.MustCompile(`^【[^】]+】$`)
)

type updatePageAdapter struct{}

func init() { register(updatePageAdapter{}, "baidu_qianfan_update_page") }

func (updatePageAdapter) Kind() string { return KindUpdatePage }

func (updatePageAdapter) Policy() Policy {
	return Policy{
		DefaultMax: 24,
		TermTag:    "release-note",
	}
}

// Extract collects one candidate per dated heading. A paragraph shaped
// like 【tag】 labels the bullets and paragraphs that follow it until the
// next tag or heading.
func (updatePageAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	limit := req.FeatureLimit(20)
	var out []Candidate

	doc.Find("h2").Each(func(_ int, heading *goquery.Selection) {
		dateText := watch.CleanFeatureText(heading.Text())
		if !fullDatePattern.MatchString(dateText) {
			return
		}

		var features []string
		currentTag := ""
		for node := heading.Next(); node.Length() > 0; node = node.Next() {
			name := goquery.NodeName(node)
			if name == "h2" {
				break
			}
			raw := watch.CleanFeatureText(node.Text())
			if raw == "" {
				continue
			}
			switch name {
			case "p":
				if bracketTagPattern.MatchString(raw) {
					currentTag = raw
					continue
				}
				appendUnique(&features, taggedPoint(currentTag, raw))
			case "ul":
				node.Find("li").Each(func(_ int, li *goquery.Selection) {
					if v := watch.CleanFeatureText(li.Text()); v != "" {
						appendUnique(&features, taggedPoint(currentTag, v))
					}
				})
			}
		}
		if limit > 0 && len(features) > limit {
			features = features[:limit]
		}

		idx := len(out) + 1
		cand := Candidate{
			Title:            fmt.Sprintf("AppBuilder 更新动态【%s】", dateText),
			URL:              fmt.Sprintf("%s#appbuilder-update-%d", req.SourceURL, idx),
			DetailPoints:     features,
			HoverDescription: dateText + " 官方更新",
		}
		if ts, ok := watch.ParseDateFromText(dateText); ok {
			cand.PublishedAt = ts
		}
		out = append(out, cand)
	})

	sortCandidatesByDate(out)
	return out, nil
}

func taggedPoint(tag, value string) string {
	if tag == "" {
		return value
	}
	return tag + " " + value
}
