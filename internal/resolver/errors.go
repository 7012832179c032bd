package resolver

import (
	"errors"
	"fmt"
)

// ErrCacheMiss 表示页面不在缓存中且调用方禁止联网。
var ErrCacheMiss = errors.New("page not cached")

// CacheMissError 携带未命中的 URL；提示先以联网模式预取该页面。
type CacheMissError struct {
	URL string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("%s: %s (network access disabled; fetch it first)", ErrCacheMiss, e.URL)
}

func (e *CacheMissError) Unwrap() error {
	return ErrCacheMiss
}
