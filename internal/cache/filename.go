package cache

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// BlobExtension 是所有页面正文文件的固定后缀。
const BlobExtension = ".html"

// DeriveFilename 取最终 URL 的最后一段路径（百分号解码后）并追加 BlobExtension。
// 结果只依赖输入；不同 URL 映射到同一文件名的情况不做处理。
func DeriveFilename(resolvedURL string) (string, error) {
	parsed, err := url.Parse(resolvedURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", resolvedURL, err)
	}

	segment := path.Base(strings.TrimRight(parsed.EscapedPath(), "/"))
	if segment == "." || segment == "/" {
		segment = ""
	}
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("decode path segment %q: %w", segment, err)
	}
	if decoded == "" {
		decoded = parsed.Hostname()
	}
	if decoded == "" || decoded == "." || decoded == ".." {
		return "", fmt.Errorf("%q: %w", resolvedURL, ErrInvalidFilename)
	}

	decoded = strings.NewReplacer("/", "_", `\`, "_", "\x00", "_").Replace(decoded)
	return decoded + BlobExtension, nil
}
