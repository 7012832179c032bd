package resolver

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thuisdata/thuis/internal/cache"
	"github.com/thuisdata/thuis/internal/fetch"
	"github.com/thuisdata/thuis/internal/index"
	"github.com/thuisdata/thuis/internal/logging"
)

// Source 是抽取器依赖的契约：给定 URL 返回原始页面文本。
type Source interface {
	Resolve(ctx context.Context, url string, allowNetwork bool) (string, error)
}

// Index 是 Resolver 需要的索引操作，*index.Index 满足该接口。
type Index interface {
	LoadAll() ([]index.Entry, error)
	Find(url string) (index.Entry, bool, error)
	Insert(entry index.Entry) error
	Update(entry index.Entry) error
}

// Fetcher 发起条件请求，*fetch.Fetcher 满足该接口。
type Fetcher interface {
	Fetch(ctx context.Context, url, since string) (fetch.Result, error)
}

const (
	outcomeCacheHit    = "cache_hit"
	outcomeCacheMiss   = "cache_miss"
	outcomeFetchedNew  = "fetched_new"
	outcomeNotModified = "revalidated_not_modified"
	outcomeUpdated     = "revalidated_updated"
	outcomeFetchFailed = "fetch_failed"
	outcomeIndexFailed = "index_failed"
	outcomeStoreFailed = "store_failed"
)

// Resolver 负责 orchestrate “查索引 → 条件回源 → 写正文/索引 → 读正文” 的全流程。
// 修改操作通过 mu 串行化，浏览服务可以共享同一个实例。
type Resolver struct {
	index   Index
	store   cache.Store
	fetcher Fetcher
	logger  *logrus.Logger

	mu sync.Mutex
}

var _ Source = (*Resolver)(nil)

// New constructs a resolver over the given index, blob store and fetcher.
func New(idx Index, store cache.Store, fetcher Fetcher, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{
		index:   idx,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Resolve 返回 url 对应的页面内容。allowNetwork 为 false 时从不访问网络，
// 未缓存的页面返回 *CacheMissError。所有成功路径都以读取正文文件结束。
func (r *Resolver) Resolve(ctx context.Context, url string, allowNetwork bool) (string, error) {
	started := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, outcome, err := r.reconcile(ctx, url, allowNetwork)
	if err != nil {
		r.logResult(url, allowNetwork, outcome, started, err)
		return "", err
	}

	body, err := r.store.Read(ctx, entry.Filename)
	if err != nil {
		err = fmt.Errorf("read cached page %s for %s: %w", entry.Filename, url, err)
		r.logResult(url, allowNetwork, outcomeStoreFailed, started, err)
		return "", err
	}

	r.logResult(url, allowNetwork, outcome, started, nil)
	return string(body), nil
}

// reconcile 让索引与正文文件反映本次请求后的状态，并返回应读取的条目。
func (r *Resolver) reconcile(ctx context.Context, url string, allowNetwork bool) (index.Entry, string, error) {
	entry, found, err := r.index.Find(url)
	if err != nil {
		return index.Entry{}, outcomeIndexFailed, fmt.Errorf("lookup %s: %w", url, err)
	}

	switch {
	case !found && !allowNetwork:
		return index.Entry{}, outcomeCacheMiss, &CacheMissError{URL: url}
	case !found:
		return r.fetchNew(ctx, url)
	case !allowNetwork:
		return entry, outcomeCacheHit, nil
	default:
		return r.revalidate(ctx, entry)
	}
}

func (r *Resolver) fetchNew(ctx context.Context, url string) (index.Entry, string, error) {
	result, err := r.fetcher.Fetch(ctx, url, "")
	if err != nil {
		return index.Entry{}, outcomeFetchFailed, err
	}
	if result.Status != fetch.StatusFetched {
		return index.Entry{}, outcomeFetchFailed, &fetch.TransportError{Kind: fetch.KindUnexpectedNotModified, URL: url}
	}

	filename, err := cache.DeriveFilename(result.ResolvedURL)
	if err != nil {
		return index.Entry{}, outcomeStoreFailed, fmt.Errorf("derive filename for %s: %w", url, err)
	}

	// 先写正文再插入索引，索引中永远不会出现指向不存在文件的记录。
	if err := r.storeBlob(ctx, url, filename, result.Body); err != nil {
		return index.Entry{}, outcomeStoreFailed, err
	}

	entry := index.Entry{
		URL:          url,
		Filename:     filename,
		LastModified: result.LastModified,
		RedirectURL:  result.ResolvedURL,
	}
	if err := r.index.Insert(entry); err != nil {
		return index.Entry{}, outcomeIndexFailed, fmt.Errorf("index %s: %w", url, err)
	}
	return entry, outcomeFetchedNew, nil
}

func (r *Resolver) revalidate(ctx context.Context, entry index.Entry) (index.Entry, string, error) {
	target := entry.RedirectURL
	if target == "" {
		target = entry.URL
	}

	result, err := r.fetcher.Fetch(ctx, target, entry.LastModified)
	if err != nil {
		return index.Entry{}, outcomeFetchFailed, err
	}
	if result.Status == fetch.StatusNotModified {
		return entry, outcomeNotModified, nil
	}

	if err := r.storeBlob(ctx, entry.URL, entry.Filename, result.Body); err != nil {
		return index.Entry{}, outcomeStoreFailed, err
	}

	entry.LastModified = result.LastModified
	if err := r.index.Update(entry); err != nil {
		return index.Entry{}, outcomeIndexFailed, fmt.Errorf("index %s: %w", entry.URL, err)
	}
	return entry, outcomeUpdated, nil
}

// storeBlob 写入正文并记录落盘结果。
func (r *Resolver) storeBlob(ctx context.Context, url, filename string, body []byte) error {
	stored, err := r.store.Write(ctx, filename, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("store %s: %w", filename, err)
	}
	r.logger.WithFields(logrus.Fields{
		"action":     "store",
		"url":        url,
		"filename":   stored.Filename,
		"file_path":  stored.FilePath,
		"size_bytes": stored.SizeBytes,
	}).Debug("blob_stored")
	return nil
}

func (r *Resolver) logResult(url string, allowNetwork bool, outcome string, started time.Time, err error) {
	fields := logging.ResolveFields(url, allowNetwork, outcome)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Error("resolve_failed")
		return
	}
	r.logger.WithFields(fields).Info("resolve_complete")
}
