package index

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey 表示插入的 URL 已存在于索引中。
var ErrDuplicateKey = errors.New("duplicate index key")

// DuplicateKeyError 携带重复的 URL，可通过 errors.Is(err, ErrDuplicateKey) 判断。
type DuplicateKeyError struct {
	URL string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("index already contains %s", e.URL)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// ConsistencyError 表示 Update 时匹配到的记录数不是恰好一条。
type ConsistencyError struct {
	URL     string
	Matches int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("index inconsistent for %s: expected exactly 1 record, found %d", e.URL, e.Matches)
}

// FormatError 表示索引文件本身无法解析（表头或列数不符）。
type FormatError struct {
	Path   string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}
