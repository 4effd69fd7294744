package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

// KindNoticeAPI handles JSON announcement-list endpoints that wrap their
// rows in a {code, msg, data} envelope.
const KindNoticeAPI = "notice_api"

var noticeLeadPattern = regexp.MustCompile(`^[\-*•\d.)\s]+`)

type noticeAPIAdapter struct{}

func init() { register(noticeAPIAdapter{}, "coze_notice_api") }

func (noticeAPIAdapter) Kind() string { return KindNoticeAPI }

func (noticeAPIAdapter) Policy() Policy {
	return Policy{
		DefaultMax: 20,
		TermTag:    "notice-api",
	}
}

// Extract decodes the envelope, locates the row list under the usual
// collection keys, and keeps only rows tagged or titled as update
// notices. Row URLs are fragment anchors on the listing page since the
// API exposes no per-notice permalink.
func (noticeAPIAdapter) Extract(_ context.Context, req Request) ([]Candidate, error) {
	var payload struct {
		Code json.Number     `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode notice payload: %w", err)
	}
	if code, err := payload.Code.Int64(); err == nil && code != 0 {
		msg := payload.Msg
		if msg == "" {
			msg = "api error"
		}
		return nil, fmt.Errorf("%s", msg)
	}

	rows := noticeRows(payload.Data)
	limit := req.FeatureLimit(12)

	out := make([]Candidate, 0, len(rows))
	for idx, row := range rows {
		title := watch.CleanFeatureText(firstString(row,
			"title", "notice_title", "name", "subject"))
		summary := watch.CleanFeatureText(firstString(row,
			"summary", "subtitle", "brief"))
		content := watch.CleanFeatureText(firstString(row,
			"content", "body", "detail", "description"))
		tagText := strings.ToLower(strings.Join([]string{
			watch.CleanFeatureText(firstString(row, "category")),
			watch.CleanFeatureText(firstString(row, "type")),
			watch.CleanFeatureText(firstString(row, "tag")),
			watch.CleanFeatureText(firstString(row, "biz_type")),
		}, " "))

		blob := strings.ToLower(strings.Join([]string{title, summary, content, tagText}, " "))
		if !strings.Contains(blob, "更新公告") &&
			!strings.Contains(tagText, "notice") &&
			!strings.Contains(tagText, "update") {
			continue
		}
		if title == "" {
			continue
		}

		cand := Candidate{
			Title:            title,
			DetailPoints:     SplitNoticePoints(summary+"\n"+content, limit),
			HoverDescription: "扣子编程更新公告",
		}
		if ts, ok := watch.ParseAnyTime(firstValue(row,
			"publish_time", "published_at", "update_time", "updated_at",
			"create_time", "created_at")); ok {
			cand.PublishedAt = ts
		}
		noticeID := watch.CleanFeatureText(noticeIdentifier(row))
		if noticeID == "" {
			noticeID = fmt.Sprintf("%d", idx+1)
		}
		cand.URL = fmt.Sprintf("%s#notice-%s", req.SourceURL, noticeID)
		out = append(out, cand)
	}
	sortCandidatesByDate(out)
	return out, nil
}

// noticeRows digs the row list out of the data envelope: first the
// conventional collection keys, then any list of objects.
func noticeRows(data json.RawMessage) []map[string]any {
	if len(data) == 0 {
		return nil
	}
	var asList []map[string]any
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList
	}
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil
	}
	for _, key := range []string{"list", "items", "records", "notices", "notice_list"} {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows
		}
	}
	keys := make([]string, 0, len(asObject))
	for key := range asObject {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var rows []map[string]any
		if err := json.Unmarshal(asObject[key], &rows); err == nil && len(rows) > 0 {
			return rows
		}
	}
	return nil
}

func noticeIdentifier(row map[string]any) string {
	for _, key := range []string{"id", "notice_id"} {
		switch v := row[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func firstValue(row map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := row[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

// SplitNoticePoints turns multi-line notice bodies into at most limit
// deduplicated bullet points, stripping list markers and numbering.
func SplitNoticePoints(text string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	points := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		cleaned := watch.CleanFeatureText(line)
		if cleaned == "" {
			continue
		}
		v := strings.TrimSpace(noticeLeadPattern.ReplaceAllString(cleaned, ""))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		points = append(points, v)
		if len(points) >= limit {
			break
		}
	}
	return points
}
