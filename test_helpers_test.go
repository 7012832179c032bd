package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
)

var repoRoot string

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			repoRoot = dir
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	if repoRoot == "" {
		t.Fatal("无法定位项目根目录")
	}
	return repoRoot
}

func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}

// useBufferWriters 把 stdOut/stdErr 替换为缓冲区，测试结束后还原。
func useBufferWriters(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = out, errOut
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out, errOut
}

// writeRunConfig 生成指向临时缓存目录的配置文件，seeds 可为空。
func writeRunConfig(t *testing.T, cacheDir string, seeds ...string) string {
	t.Helper()
	quoted := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		quoted = append(quoted, fmt.Sprintf("%q", seed))
	}
	content := fmt.Sprintf(`
LogLevel = "warn"
CacheDir = %q
UpstreamTimeout = "5s"
Seeds = [%s]

[Discover]
PathPrefix = "/nl/wiki/"
MaxLinks = 10
`, cacheDir, strings.Join(quoted, ", "))

	path := filepath.Join(t.TempDir(), "thuis.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

// wikiUpstream 模拟 fandom wiki：每个页面都带 Last-Modified，并支持 If-Modified-Since。
type wikiUpstream struct {
	server *httptest.Server
	hits   atomic.Int32
	pages  map[string]string
}

const upstreamLastModified = "Wed, 01 May 2024 10:00:00 GMT"

func newWikiUpstream(t *testing.T, pages map[string]string) *wikiUpstream {
	t.Helper()
	u := &wikiUpstream{pages: pages}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		body, ok := u.pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("If-Modified-Since") == upstreamLastModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", upstreamLastModified)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *wikiUpstream) url(path string) string {
	return u.server.URL + path
}
