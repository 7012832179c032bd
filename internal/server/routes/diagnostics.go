package routes

import (
	"context"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/thuisdata/thuis/internal/index"
	"github.com/thuisdata/thuis/internal/resolver"
)

// EntryLister 读取完整索引，*index.Index 满足该接口。
type EntryLister interface {
	LoadAll() ([]index.Entry, error)
}

// Verifier 执行索引/正文一致性检查，*resolver.Resolver 满足该接口。
type Verifier interface {
	Verify(ctx context.Context) (resolver.Report, error)
}

// RegisterDiagnosticsRoutes 暴露 /-/entries 与 /-/verify 诊断接口，供运维查看缓存状态。
func RegisterDiagnosticsRoutes(app *fiber.App, entries EntryLister, verifier Verifier) {
	if app == nil {
		return
	}

	if entries != nil {
		app.Get("/-/entries", func(c fiber.Ctx) error {
			list, err := entries.LoadAll()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "index_unreadable"})
			}
			sortKey := strings.ToLower(strings.TrimSpace(c.Query("sort")))
			return c.JSON(fiber.Map{
				"count":   len(list),
				"entries": encodeEntries(list, sortKey),
			})
		})
	}

	if verifier != nil {
		app.Get("/-/verify", func(c fiber.Ctx) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := verifier.Verify(ctx)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verify_failed"})
			}
			status := fiber.StatusOK
			if !report.Consistent() {
				status = fiber.StatusConflict
			}
			return c.Status(status).JSON(report)
		})
	}
}

type entryPayload struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	LastModified string `json:"last_modified"`
	RedirectURL  string `json:"redirect_url"`
	Redirected   bool   `json:"redirected"`
}

// encodeEntries 默认保持索引顺序；sortKey 为 "url" 或 "filename" 时排序副本。
func encodeEntries(entries []index.Entry, sortKey string) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryPayload{
			URL:          entry.URL,
			Filename:     entry.Filename,
			LastModified: entry.LastModified,
			RedirectURL:  entry.RedirectURL,
			Redirected:   entry.RedirectURL != "" && entry.RedirectURL != entry.URL,
		})
	}

	switch sortKey {
	case "url":
		sort.SliceStable(result, func(i, j int) bool { return result[i].URL < result[j].URL })
	case "filename":
		sort.SliceStable(result, func(i, j int) bool { return result[i].Filename < result[j].Filename })
	}
	return result
}
