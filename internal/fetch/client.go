// Package fetch drives the official-channel collection: one HTTP client
// with per-source request options, and a fetcher that fans out over a
// category's declared sources and assembles provenance-tagged records.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	noticeHeadersEnv = "COZE_NOTICE_HEADERS_JSON"
	noticeCookieEnv  = "COZE_NOTICE_COOKIE"
	noticeCSRFEnv    = "COZE_NOTICE_X_CSRF_TOKEN"

	maxResponseBytes = 8 << 20
)

// Client wraps the shared HTTP client used for every official-channel
// request. All requests carry a browser user agent; some sites refuse
// the Go default.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Get fetches a URL with default options. Used for detail pages, API
// rewrites and link expansion.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, nil)
}

// FetchSource fetches a source listing with the descriptor's method,
// JSON payload and header options applied.
func (c *Client) FetchSource(ctx context.Context, src watch.SourceDescriptor) ([]byte, error) {
	method := strings.ToUpper(strings.TrimSpace(src.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	headers := sourceHeaders(src)
	if method == http.MethodPost && len(src.Payload) > 0 {
		encoded, err := json.Marshal(src.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
		if _, ok := headers["Content-Type"]; !ok {
			if headers == nil {
				headers = map[string]string{}
			}
			headers["Content-Type"] = "application/json"
		}
	}
	return c.do(ctx, method, src.URL, body, headers)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	if strings.HasPrefix(url, "https://api.github.com/") {
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sourceHeaders resolves the request headers for one source: static
// headers from the descriptor, a JSON header dict from the environment,
// and cookie/CSRF values the notice API needs for authenticated reads.
func sourceHeaders(src watch.SourceDescriptor) map[string]string {
	headers := map[string]string{}
	for k, v := range src.Headers {
		key, value := strings.TrimSpace(k), strings.TrimSpace(v)
		if key != "" && value != "" {
			headers[key] = value
		}
	}

	isNoticeAPI := strings.EqualFold(strings.TrimSpace(src.Parser), "notice_api") ||
		strings.EqualFold(strings.TrimSpace(src.Parser), "coze_notice_api")

	headersEnv := strings.TrimSpace(src.HeadersEnv)
	switch {
	case headersEnv != "":
		mergeEnvHeaders(headers, headersEnv)
	case isNoticeAPI:
		mergeEnvHeaders(headers, noticeHeadersEnv)
	}

	cookie := ""
	if env := strings.TrimSpace(src.CookieEnv); env != "" {
		cookie = strings.TrimSpace(os.Getenv(env))
	}
	if cookie == "" && isNoticeAPI {
		cookie = strings.TrimSpace(os.Getenv(noticeCookieEnv))
	}
	if cookie != "" {
		if _, ok := headers["Cookie"]; !ok {
			headers["Cookie"] = cookie
		}
	}

	if isNoticeAPI {
		if csrf := strings.TrimSpace(os.Getenv(noticeCSRFEnv)); csrf != "" && !hasHeaderFold(headers, "x-csrf-token") {
			headers["x-csrf-token"] = csrf
		}
	}

	if len(headers) == 0 {
		return nil
	}
	return headers
}

func mergeEnvHeaders(headers map[string]string, envName string) {
	raw := strings.TrimSpace(os.Getenv(envName))
	if raw == "" {
		return
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return
	}
	for k, v := range decoded {
		key, value := strings.TrimSpace(k), strings.TrimSpace(v)
		if key != "" && value != "" {
			headers[key] = value
		}
	}
}

func hasHeaderFold(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
