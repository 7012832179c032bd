package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/thuisdata/thuis/internal/index"
	"github.com/thuisdata/thuis/internal/resolver"
)

type staticEntries struct {
	entries []index.Entry
	err     error
}

func (s staticEntries) LoadAll() ([]index.Entry, error) {
	return s.entries, s.err
}

type staticVerifier struct {
	report resolver.Report
}

func (s staticVerifier) Verify(context.Context) (resolver.Report, error) {
	return s.report, nil
}

func TestEncodeEntriesKeepsIndexOrder(t *testing.T) {
	entries := []index.Entry{
		{URL: "https://site/b", Filename: "b.html", RedirectURL: "https://site/b"},
		{URL: "https://site/a", Filename: "z.html", RedirectURL: "https://site/z"},
	}

	encoded := encodeEntries(entries, "")
	if encoded[0].URL != "https://site/b" || encoded[1].URL != "https://site/a" {
		t.Fatalf("expected index order, got %+v", encoded)
	}
	if encoded[0].Redirected || !encoded[1].Redirected {
		t.Fatalf("redirected flag mismatch: %+v", encoded)
	}

	sorted := encodeEntries(entries, "url")
	if sorted[0].URL != "https://site/a" {
		t.Fatalf("expected url sort, got %+v", sorted)
	}
	if entries[0].URL != "https://site/b" {
		t.Fatalf("sorting must not mutate the input")
	}
}

func TestEntriesRoute(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, staticEntries{entries: []index.Entry{
		{URL: "https://site/a", Filename: "a.html", LastModified: "Mon, 01 Jan 2024 00:00:00 GMT", RedirectURL: "https://site/a"},
	}}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/entries", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Count   int            `json:"count"`
		Entries []entryPayload `json:"entries"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, string(body))
	}
	if payload.Count != 1 || payload.Entries[0].Filename != "a.html" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestEntriesRouteIndexError(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, staticEntries{err: errors.New("broken")}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/-/entries", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestVerifyRouteReportsConflict(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app, nil, staticVerifier{report: resolver.Report{
		Entries:  1,
		Dangling: []index.Entry{{URL: "https://site/a", Filename: "a.html"}},
	}})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/verify", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 for dangling entries, got %d", resp.StatusCode)
	}
}
