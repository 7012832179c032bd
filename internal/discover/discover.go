// Package discover finds wiki pages linked from an already resolved page so
// the operator can pre-populate the cache before running offline extractions.
package discover

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Options 限定发现范围。
type Options struct {
	// PathPrefix 只保留路径以此开头的链接，例如 "/nl/wiki/"。
	PathPrefix string
	// MaxLinks 为 0 时不限制数量。
	MaxLinks int
	// IncludeNamespaced 为 false 时跳过 "Categorie:"、"Bestand:" 这类命名空间页面。
	IncludeNamespaced bool
}

// Links 解析 html 中的 a[href]，以 pageURL 为基准补全相对地址并去掉 fragment；
// 跳过带 query 的链接，只保留同 host 且匹配 PathPrefix 的页面；结果按首次出现的顺序去重，不包含 pageURL 本身。
func Links(pageURL, html string, opts Options) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
	}

	self := normalize(base)
	seen := map[string]struct{}{self: {}}
	var links []string

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		ref, err := base.Parse(href)
		if err != nil {
			return true
		}
		if !accept(base, ref, opts) {
			return true
		}

		link := normalize(ref)
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)

		return opts.MaxLinks <= 0 || len(links) < opts.MaxLinks
	})

	return links, nil
}

func accept(base, ref *url.URL, opts Options) bool {
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return false
	}
	if !strings.EqualFold(ref.Host, base.Host) {
		return false
	}
	if opts.PathPrefix != "" && !strings.HasPrefix(ref.Path, opts.PathPrefix) {
		return false
	}
	if ref.RawQuery != "" {
		// ?action=edit 之类的链接不是独立页面。
		return false
	}
	page := strings.TrimPrefix(ref.Path, opts.PathPrefix)
	if page == "" {
		return false
	}
	if !opts.IncludeNamespaced && strings.Contains(page, ":") {
		return false
	}
	return true
}

func normalize(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	clean.RawQuery = ""
	clean.ForceQuery = false
	clean.Host = strings.ToLower(clean.Host)
	return clean.String()
}
