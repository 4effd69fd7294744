package source

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindMonthlyReport handles community feeds that surface a product's
// monthly digest as an article card. The newest report is fetched and
// its lark-rendered body mined for feature points and product groups.
const KindMonthlyReport = "monthly_report"

var (
	monthlyTitlePattern = regexp.MustCompile(`(百炼产品月报|阿里云百炼产品月报|百炼产品月刊|产品月报)`)
	monthInTextPattern  = regexp.MustCompile(`20\d{2}\s*年\s*\d{1,2}\s*月`)
	communityTitleSuffixPattern = regexp.MustCompile(`-\s*阿里云开发者社区\s*$`)

	larkContentSingle = regexp.MustCompile(`(?s)GLOBAL_CONFIG\.larkContent\s*=\s*'((?:\\.|[^'\\])*)'\s*;`)
	larkContentDouble = regexp.MustCompile(`(?s)GLOBAL_CONFIG\.larkContent\s*=\s*"((?:\\.|[^"\\])*)"\s*;`)

	sentencePunctPattern = regexp.MustCompile(`[。；;:：]`)
)

type monthlyReportAdapter struct{}

func init() { register(monthlyReportAdapter{}, "aliyun_bailian_monthly_report") }

func (monthlyReportAdapter) Kind() string { return KindMonthlyReport }

func (monthlyReportAdapter) Policy() Policy {
	return Policy{
		DefaultMax:        1,
		TermTag:           "monthly-feature",
		TagRequiresPoints: true,
	}
}

// Extract scans the feed page for monthly report cards, follows each to
// its article page for the real title and date, and mines the article
// body for the digest's feature points and product groups.
func (m monthlyReportAdapter) Extract(ctx context.Context, req Request) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	cards := monthlyReportCards(doc, req.SourceURL)
	limit := req.FeatureLimit(10)

	out := make([]Candidate, 0, len(cards))
	for _, card := range cards {
		cand := Candidate{Title: card.title, URL: card.url}
		detail, err := req.Fetch(ctx, card.url)
		if err == nil {
			detailText := string(detail)
			if ts, ok := watch.ParseDateFromHTML(detailText); ok {
				cand.PublishedAt = ts
			}
			if title := articleTitle(detailText); title != "" {
				cand.Title = title
			}
			cand.DetailGroups = monthlyReportProductGroups(detailText, limit)
			cand.DetailPoints = monthlyReportFeatures(detailText, limit)
			if flat := flattenDetailGroups(cand.DetailGroups); len(flat) > 0 {
				cand.DetailPoints = flat
			}
		}
		out = append(out, cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.URL > b.URL
	})
	return out, nil
}

type reportCard struct {
	title string
	url   string
}

// monthlyReportCards picks feed anchors that look like monthly reports.
// When two cards share a URL the better-shaped title wins.
func monthlyReportCards(doc *goquery.Document, sourceURL string) []reportCard {
	order := make([]string, 0, 8)
	byURL := make(map[string]reportCard, 8)

	doc.Find("a.feed-item-content-title[href], a.slide-banner-content[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved := absoluteURL(sourceURL, href)
		if resolved == "" {
			return
		}
		title := ""
		if h3 := sel.Find("h3").First(); h3.Length() > 0 {
			title = h3.Text()
		}
		if strings.TrimSpace(title) == "" {
			title = sel.Text()
		}
		if strings.TrimSpace(title) == "" {
			title, _ = sel.Attr("title")
		}
		if strings.TrimSpace(title) == "" {
			if img := sel.Find("img").First(); img.Length() > 0 {
				title, _ = img.Attr("alt")
			}
		}
		title = strings.Join(strings.Fields(title), " ")
		if title == "" {
			return
		}
		if !monthlyTitlePattern.MatchString(title) && !monthInTextPattern.MatchString(title) {
			return
		}
		old, seen := byURL[resolved]
		if !seen {
			order = append(order, resolved)
			byURL[resolved] = reportCard{title: title, url: resolved}
			return
		}
		if betterReportTitle(title, old.title) {
			byURL[resolved] = reportCard{title: title, url: resolved}
		}
	})

	out := make([]reportCard, 0, len(order))
	for _, key := range order {
		out = append(out, byURL[key])
	}
	return out
}

func betterReportTitle(title, old string) bool {
	a, b := reportTitleScore(title), reportTitleScore(old)
	if a != b {
		return a > b
	}
	return utf8.RuneCountInString(title) > utf8.RuneCountInString(old)
}

func reportTitleScore(title string) int {
	score := 0
	if strings.Contains(title, "月报") {
		score += 3
	}
	if strings.Contains(title, "月刊") {
		score++
	}
	if monthInTextPattern.MatchString(title) {
		score += 2
	}
	return score
}

// articleTitle finds the article headline: h1.article-title, any h1,
// then the page title minus the community suffix.
func articleTitle(detailHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
	if err != nil {
		return ""
	}
	for _, selector := range []string{"h1.article-title", "h1"} {
		if node := doc.Find(selector).First(); node.Length() > 0 {
			if title := watch.CleanFeatureText(node.Text()); title != "" {
				return title
			}
		}
	}
	if node := doc.Find("title").First(); node.Length() > 0 {
		title := strings.TrimSpace(communityTitleSuffixPattern.ReplaceAllString(strings.TrimSpace(node.Text()), ""))
		return strings.Join(strings.Fields(title), " ")
	}
	return ""
}

// ExtractLarkContent pulls the JS string literal assigned to
// GLOBAL_CONFIG.larkContent and decodes it into HTML, repairing escaped
// UTF-16 surrogate pairs emoji arrive as.
func ExtractLarkContent(detailHTML string) string {
	var raw string
	if m := larkContentSingle.FindStringSubmatch(detailHTML); m != nil {
		raw = m[1]
	} else if m := larkContentDouble.FindStringSubmatch(detailHTML); m != nil {
		raw = m[1]
	} else {
		return ""
	}
	text := decodeJSStringLiteral(raw)
	text = strings.ReplaceAll(text, `\/`, "/")
	return html.UnescapeString(text)
}

// decodeJSStringLiteral interprets backslash escapes in a JS string
// body, combining \uXXXX surrogate pairs into full code points.
func decodeJSStringLiteral(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	var pendingSurrogate rune

	flushPending := func() {
		if pendingSurrogate != 0 {
			b.WriteRune(utf8.RuneError)
			pendingSurrogate = 0
		}
	}

	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' {
			flushPending()
			r, size := utf8.DecodeRuneInString(raw[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(raw) {
			flushPending()
			b.WriteByte(c)
			break
		}
		esc := raw[i+1]
		i += 2
		switch esc {
		case 'n':
			flushPending()
			b.WriteByte('\n')
		case 't':
			flushPending()
			b.WriteByte('\t')
		case 'r':
			flushPending()
			b.WriteByte('\r')
		case 'u':
			if i+4 > len(raw) {
				flushPending()
				continue
			}
			var unit rune
			ok := true
			for _, h := range raw[i : i+4] {
				v := hexDigit(byte(h))
				if v < 0 {
					ok = false
					break
				}
				unit = unit<<4 | rune(v)
			}
			if !ok {
				flushPending()
				continue
			}
			i += 4
			switch {
			case utf16.IsSurrogate(unit) && pendingSurrogate != 0:
				if r := utf16.DecodeRune(pendingSurrogate, unit); r != utf8.RuneError {
					b.WriteRune(r)
					pendingSurrogate = 0
				} else {
					pendingSurrogate = unit
				}
			case utf16.IsSurrogate(unit):
				pendingSurrogate = unit
			default:
				flushPending()
				b.WriteRune(unit)
			}
		default:
			flushPending()
			b.WriteByte(esc)
		}
	}
	if pendingSurrogate != 0 {
		b.WriteRune(utf8.RuneError)
	}
	return b.String()
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// monthlyReportFeatures mines the digest's headline points from the
// 核心升级, 模型动态 and 产品动态 sections of the lark body.
func monthlyReportFeatures(detailHTML string, limit int) []string {
	larkHTML := ExtractLarkContent(detailHTML)
	if larkHTML == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(larkHTML))
	if err != nil {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	current := ""
	out := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	add := func(value string) {
		cleaned := watch.CleanFeatureText(value)
		if cleaned == "" {
			return
		}
		key := strings.ToLower(cleaned)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, cleaned)
	}

	doc.Find("h2, li, p").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		name := goquery.NodeName(node)
		if name == "h2" {
			current = watch.CleanFeatureText(node.Text())
			return true
		}
		if !strings.Contains(current, "核心升级") &&
			!strings.Contains(current, "模型动态") &&
			!strings.Contains(current, "产品动态") {
			return true
		}
		switch name {
		case "li":
			add(node.Text())
		case "p":
			if strings.Contains(current, "核心升级") {
				if strong := node.Find("strong").First(); strong.Length() > 0 {
					add(strong.Text())
				}
			}
		}
		return len(out) < limit
	})
	return out
}

// monthlyReportProductGroups builds titled bullet groups from the
// 产品动态 section: h3/h4 headings and short strong-lead paragraphs open
// a group, list items fill it.
func monthlyReportProductGroups(detailHTML string, limit int) []watch.DetailGroup {
	larkHTML := ExtractLarkContent(detailHTML)
	if larkHTML == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(larkHTML))
	if err != nil {
		return nil
	}

	inSection := false
	currentTitle := ""
	var order []string
	bullets := make(map[string][]string)

	ensure := func(title string) string {
		t := watch.CleanFeatureText(title)
		if t == "" {
			t = "产品动态要点"
		}
		if _, ok := bullets[t]; !ok {
			order = append(order, t)
			bullets[t] = nil
		}
		return t
	}

	doc.Find("h2, h3, h4, p, li").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		name := goquery.NodeName(node)
		if name == "h2" {
			section := watch.CleanFeatureText(node.Text())
			if strings.Contains(section, "产品动态") {
				inSection = true
				currentTitle = ""
				return true
			}
			return !inSection
		}
		if !inSection {
			return true
		}
		switch name {
		case "h3", "h4":
			currentTitle = watch.CleanFeatureText(node.Text())
		case "p":
			text := node.Text()
			if strong := node.Find("strong").First(); strong.Length() > 0 {
				text = strong.Text()
			}
			cleaned := watch.CleanFeatureText(text)
			if cleaned != "" && utf8.RuneCountInString(cleaned) <= 48 && !sentencePunctPattern.MatchString(cleaned) {
				currentTitle = cleaned
			}
		case "li":
			bullet := watch.CleanFeatureText(node.Text())
			if bullet == "" {
				return true
			}
			key := ensure(currentTitle)
			have := bullets[key]
			for _, b := range have {
				if b == bullet {
					return true
				}
			}
			bullets[key] = append(have, bullet)
		}
		return true
	})

	out := make([]watch.DetailGroup, 0, len(order))
	for _, title := range order {
		bs := bullets[title]
		if len(bs) == 0 {
			continue
		}
		if limit > 0 && len(bs) > limit {
			bs = bs[:limit]
		}
		out = append(out, watch.DetailGroup{Title: title, Bullets: bs})
	}
	return out
}

func flattenDetailGroups(groups []watch.DetailGroup) []string {
	var out []string
	for _, g := range groups {
		title := watch.CleanFeatureText(g.Title)
		for _, b := range g.Bullets {
			if title != "" {
				out = append(out, title+"："+b)
			} else {
				out = append(out, b)
			}
		}
	}
	return out
}
