package fetch

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/thuisdata/thuis/internal/logging"
)

// EpochSince 在没有已知修改时间时作为 If-Modified-Since，保证首次请求总是完整下载。
const EpochSince = "Thu, 01 Jan 1970 00:00:00 GMT"

// Status 区分条件请求的两种成功结果。
type Status int

const (
	StatusFetched Status = iota + 1
	StatusNotModified
)

func (s Status) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusNotModified:
		return "not_modified"
	default:
		return "unknown"
	}
}

// Result 是一次成功的条件请求。StatusNotModified 时其余字段为空。
type Result struct {
	Status       Status
	ResolvedURL  string
	Body         []byte
	LastModified string
}

// Options 控制请求头与日志输出。
type Options struct {
	UserAgent string
	Logger    *logrus.Logger
}

// Fetcher 对单个 URL 发起条件 GET，并把响应归类为 fetched / not-modified / error。
type Fetcher struct {
	client *resty.Client
	logger *logrus.Logger
}

// New 在共享 http.Client 之上构建 Fetcher。
func New(httpClient *http.Client, opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}

	client := resty.NewWithClient(httpClient)
	client.SetLogger(logger)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}

	return &Fetcher{client: client, logger: logger}
}

// Fetch 请求 url；since 为空时使用 EpochSince。since 与 Last-Modified 均原样透传，不做格式转换。
func (f *Fetcher) Fetch(ctx context.Context, url, since string) (Result, error) {
	if since == "" {
		since = EpochSince
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("If-Modified-Since", since).
		Get(url)
	if err != nil {
		return Result{}, &TransportError{Kind: KindConnection, URL: url, Err: err}
	}

	fields := logrus.Fields{
		"action":          "fetch",
		"url":             url,
		"since":           since,
		"upstream_status": resp.StatusCode(),
		"elapsed_ms":      resp.Time().Milliseconds(),
	}

	switch resp.StatusCode() {
	case http.StatusNotModified:
		f.logger.WithFields(fields).Debug("fetch_not_modified")
		return Result{Status: StatusNotModified}, nil
	case http.StatusOK:
		lastModified := resp.Header().Get("Last-Modified")
		if lastModified == "" {
			return Result{}, &TransportError{Kind: KindMissingLastModified, URL: url, StatusCode: resp.StatusCode()}
		}
		resolved := finalURL(resp, url)
		fields["resolved_url"] = resolved
		fields["size_bytes"] = len(resp.Body())
		f.logger.WithFields(fields).Debug("fetch_complete")
		return Result{
			Status:       StatusFetched,
			ResolvedURL:  resolved,
			Body:         resp.Body(),
			LastModified: lastModified,
		}, nil
	default:
		f.logger.WithFields(fields).Warn("fetch_unexpected_status")
		return Result{}, &TransportError{Kind: KindUnexpectedStatus, URL: url, StatusCode: resp.StatusCode()}
	}
}

// finalURL 返回跟随重定向后的最后一个请求地址。
func finalURL(resp *resty.Response, fallback string) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return fallback
}
