package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

func TestClientGetSetsBrowserUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	body, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
	if !strings.Contains(gotUA, "Chrome/") {
		t.Fatalf("expected browser user agent, got %q", gotUA)
	}
}

func TestClientGetStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Get(context.Background(), server.URL)
	if err == nil || err.Error() != "unexpected status 403" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchSourcePostPayload(t *testing.T) {
	t.Parallel()

	var gotMethod, gotContentType, gotCustom string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Channel")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		fmt.Fprint(w, "{}")
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	src := watch.SourceDescriptor{
		URL:     server.URL + "/api/notices",
		Method:  "post",
		Payload: map[string]any{"page": float64(1)},
		Headers: map[string]string{"X-Channel": "web"},
	}
	if _, err := client.FetchSource(context.Background(), src); err != nil {
		t.Fatalf("FetchSource failed: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("unexpected method: %q", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if gotCustom != "web" {
		t.Fatalf("descriptor header not sent: %q", gotCustom)
	}
	if gotPayload["page"] != float64(1) {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
}

func TestSourceHeadersNoticeEnvDefaults(t *testing.T) {
	t.Setenv("COZE_NOTICE_HEADERS_JSON", `{"X-From": "env", "": "dropme"}`)
	t.Setenv("COZE_NOTICE_COOKIE", "sid=abc")
	t.Setenv("COZE_NOTICE_X_CSRF_TOKEN", "tok123")

	headers := sourceHeaders(watch.SourceDescriptor{
		URL:    "https://example.com/api",
		Parser: "notice_api",
	})
	if headers["X-From"] != "env" {
		t.Fatalf("env headers not merged: %v", headers)
	}
	if headers["Cookie"] != "sid=abc" {
		t.Fatalf("notice cookie default missing: %v", headers)
	}
	if headers["x-csrf-token"] != "tok123" {
		t.Fatalf("csrf default missing: %v", headers)
	}

	// Explicit descriptor values win over the notice defaults.
	headers = sourceHeaders(watch.SourceDescriptor{
		URL:     "https://example.com/api",
		Parser:  "coze_notice_api",
		Headers: map[string]string{"Cookie": "sid=явно", "X-CSRF-Token": "own"},
	})
	if headers["Cookie"] != "sid=явно" {
		t.Fatalf("descriptor cookie must win: %v", headers)
	}
	if _, ok := headers["x-csrf-token"]; ok {
		t.Fatalf("csrf default must respect existing header: %v", headers)
	}
}

func TestSourceHeadersCustomEnvs(t *testing.T) {
	t.Setenv("MY_HEADERS", `{"Authorization": "Bearer xyz"}`)
	t.Setenv("MY_COOKIE", "c=1")

	headers := sourceHeaders(watch.SourceDescriptor{
		URL:        "https://example.com/feed",
		HeadersEnv: "MY_HEADERS",
		CookieEnv:  "MY_COOKIE",
	})
	if headers["Authorization"] != "Bearer xyz" {
		t.Fatalf("headers_env not applied: %v", headers)
	}
	if headers["Cookie"] != "c=1" {
		t.Fatalf("cookie_env not applied: %v", headers)
	}

	// No envs, no parser hints: no headers at all.
	if got := sourceHeaders(watch.SourceDescriptor{URL: "https://example.com/feed"}); got != nil {
		t.Fatalf("expected nil headers, got %v", got)
	}
}

func TestGitHubAPIAccept(t *testing.T) {
	t.Parallel()

	// The Accept header is keyed off the api.github.com prefix; a local
	// server request must not carry it.
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, "[]")
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	if _, err := client.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gotAccept == "application/vnd.github+json" {
		t.Fatalf("github accept header must be scoped to the github api, got %q", gotAccept)
	}
}
