package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/thuisdata/thuis/internal/fetch"
	"github.com/thuisdata/thuis/internal/logging"
	"github.com/thuisdata/thuis/internal/resolver"
)

type stubSource struct {
	content      string
	err          error
	gotURL       string
	allowNetwork bool
}

func (s *stubSource) Resolve(_ context.Context, url string, allowNetwork bool) (string, error) {
	s.gotURL = url
	s.allowNetwork = allowNetwork
	return s.content, s.err
}

func TestPageServesResolvedContent(t *testing.T) {
	source := &stubSource{content: "<html>Relaties</html>"}
	app := newTestApp(t, source)

	target := "https://nergensbeterdanthuis.fandom.com/nl/wiki/Relaties"
	resp := doGet(t, app, "/page?url="+url.QueryEscape(target))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != source.content {
		t.Fatalf("unexpected body %q", string(body))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("expected html content type, got %s", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if source.gotURL != target || source.allowNetwork {
		t.Fatalf("expected offline resolve of %s, got %s (network=%v)", target, source.gotURL, source.allowNetwork)
	}
}

func TestPagePassesNetworkFlag(t *testing.T) {
	source := &stubSource{content: "x"}
	app := newTestApp(t, source)

	resp := doGet(t, app, "/page?url=https://site/x&network=true")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !source.allowNetwork {
		t.Fatalf("expected network flag to be forwarded")
	}
}

func TestPageErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"cache miss", &resolver.CacheMissError{URL: "https://site/x"}, fiber.StatusNotFound, "cache_miss"},
		{"upstream", &fetch.TransportError{Kind: fetch.KindUnexpectedStatus, StatusCode: 500}, fiber.StatusBadGateway, "upstream_failed"},
		{"other", errors.New("disk full"), fiber.StatusInternalServerError, "resolve_failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t, &stubSource{err: tc.err})
			resp := doGet(t, app, "/page?url=https://site/x")
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tc.code) {
				t.Fatalf("expected error code %s, got %s", tc.code, string(body))
			}
		})
	}
}

func TestPageRequiresURL(t *testing.T) {
	app := newTestApp(t, &stubSource{})
	resp := doGet(t, app, "/page")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPageRejectsBadNetworkFlag(t *testing.T) {
	app := newTestApp(t, &stubSource{})
	resp := doGet(t, app, "/page?url=https://site/x&network=maybe")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	if _, err := NewApp(AppOptions{Source: &stubSource{}, ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewApp(AppOptions{Logger: logging.Discard(), ListenPort: 5000}); err == nil {
		t.Fatalf("expected error without source")
	}
	if _, err := NewApp(AppOptions{Logger: logging.Discard(), Source: &stubSource{}}); err == nil {
		t.Fatalf("expected error without listen port")
	}
}

func newTestApp(t *testing.T, source resolver.Source) *fiber.App {
	t.Helper()
	app, err := NewApp(AppOptions{Logger: logging.Discard(), Source: source, ListenPort: 5000})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}
