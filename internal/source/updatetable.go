package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindUpdateTable handles changelog pages built from 动态名称/动态描述
// tables. The default form digests each table into one candidate per
// month heading; the rows form exposes every table row as its own
// candidate.
const (
	KindUpdateTable     = "update_table"
	KindUpdateTableRows = "update_table_rows"
)

var monthHeadingPattern = regexp.MustCompile(`(20\d{2})\s*年\s*(\d{1,2})\s*月`)

type updateTableAdapter struct{}

func init() {
	register(updateTableAdapter{}, "tencent_adp_table")
	register(updateTableRowsAdapter{})
}

func (updateTableAdapter) Kind() string { return KindUpdateTable }

func (updateTableAdapter) Policy() Policy {
	return Policy{
		UseBuckets:      true,
		OldFallback:     8,
		UndatedFallback: 8,
		TermTag:         "table-update",
	}
}

// Extract emits one monthly digest candidate per update table: the month
// comes from the nearest heading above the table, the detail points from
// the name and description columns.
func (updateTableAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	limit := req.FeatureLimit(20)
	var out []Candidate

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 || !isUpdateTableHead(rows.First()) {
			return
		}

		monthText := ""
		if heading := table.PrevAllFiltered("h2, h3, h4").First(); heading.Length() > 0 {
			monthText = watch.CleanFeatureText(heading.Text())
		}

		var points []string
		rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
			cols := tr.Find("th, td")
			if cols.Length() < 2 {
				return
			}
			name := watch.CleanFeatureText(cols.Eq(0).Text())
			desc := watch.CleanFeatureText(cols.Eq(1).Text())
			if name == "" {
				return
			}
			point := name
			if desc != "" {
				point = name + "：" + desc
			}
			appendUnique(&points, point)
		})
		if limit > 0 && len(points) > limit {
			points = points[:limit]
		}
		if len(points) == 0 {
			return
		}

		cand := Candidate{DetailPoints: points}
		monthLabel := monthText
		if m := monthHeadingPattern.FindStringSubmatch(monthText); m != nil {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if year > 0 && month >= 1 && month <= 12 {
				cand.PublishedAt = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			}
		}
		if monthLabel == "" && !cand.PublishedAt.IsZero() {
			monthLabel = fmt.Sprintf("%d年%02d月", cand.PublishedAt.Year(), int(cand.PublishedAt.Month()))
		}
		if monthLabel != "" {
			cand.Title = fmt.Sprintf("腾讯云ADP更新动态【%s】", monthLabel)
			cand.HoverDescription = monthLabel + " 官方更新"
		} else {
			cand.Title = "腾讯云ADP更新动态"
			cand.HoverDescription = "官方更新"
		}
		slug := nonDigitPattern.ReplaceAllString(monthLabel, "")
		if slug == "" {
			slug = fmt.Sprintf("%d", len(out)+1)
		}
		cand.URL = fmt.Sprintf("%s#adp-update-%s", req.SourceURL, slug)
		out = append(out, cand)
	})

	sortCandidatesByDate(out)
	return out, nil
}

type updateTableRowsAdapter struct{}

func (updateTableRowsAdapter) Kind() string { return KindUpdateTableRows }

func (updateTableRowsAdapter) Policy() Policy {
	return Policy{
		UseBuckets:      true,
		OldFallback:     8,
		UndatedFallback: 8,
		TermTag:         "table-update",
	}
}

// Extract emits one candidate per table row: name, description, date and
// an optional doc link from the fourth column.
func (updateTableRowsAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Candidate
	rowIndex := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 || !isUpdateTableHead(rows.First()) {
			return
		}
		rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
			cols := tr.Find("th, td")
			if cols.Length() < 3 {
				return
			}
			title := watch.CleanFeatureText(cols.Eq(0).Text())
			if title == "" {
				return
			}
			cand := Candidate{
				Title:       title,
				Description: watch.CleanFeatureText(cols.Eq(1).Text()),
			}
			publishedText := watch.CleanFeatureText(cols.Eq(2).Text())
			if ts, ok := watch.ParseDateFromText(publishedText); ok {
				cand.PublishedAt = ts
			} else if ts, ok := watch.ParseYearMonthText(publishedText); ok {
				cand.PublishedAt = ts
			}
			if cols.Length() >= 4 {
				if href, ok := cols.Eq(3).Find("a[href]").First().Attr("href"); ok {
					cand.URL = absoluteURL(req.SourceURL, href)
				}
			}
			rowIndex++
			if cand.URL == "" {
				cand.URL = fmt.Sprintf("%s#adp-update-%d", req.SourceURL, rowIndex)
			}
			out = append(out, cand)
		})
	})
	return out, nil
}

func isUpdateTableHead(head *goquery.Selection) bool {
	parts := make([]string, 0, 4)
	head.Find("th, td").Each(func(_ int, col *goquery.Selection) {
		parts = append(parts, watch.CleanFeatureText(col.Text()))
	})
	line := strings.Join(parts, " ")
	return strings.Contains(line, "动态名称") && strings.Contains(line, "动态描述")
}
