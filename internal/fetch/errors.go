package fetch

import "fmt"

// Kind 对传输失败进行分类，供日志与调用方判断。
type Kind string

const (
	KindConnection            Kind = "connection"
	KindUnexpectedStatus      Kind = "unexpected_status"
	KindMissingLastModified   Kind = "missing_last_modified"
	KindUnexpectedNotModified Kind = "unexpected_not_modified"
)

// TransportError 表示一次抓取失败：连接错误或非预期的响应。本层不重试。
type TransportError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
