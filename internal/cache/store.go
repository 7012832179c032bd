package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理缓存目录中的页面正文。磁盘布局遵循：
//
//	<CacheDir>/<filename>.html    # 实际正文
//
// 每个条目仅由正文文件组成，与索引文件位于同一目录。
type Store interface {
	// Read 返回 filename 对应的完整正文。若不存在则返回 ErrNotFound。
	Read(ctx context.Context, filename string) ([]byte, error)

	// Write 创建或覆盖 filename 对应的正文。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。
	Write(ctx context.Context, filename string, body io.Reader) (*Entry, error)

	// List 返回目录中所有正文文件名（按字典序），用于一致性检查。
	List(ctx context.Context) ([]string, error)
}

// Entry 描述一次写入结果，包含绝对文件路径及文件信息。
type Entry struct {
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ErrNotFound 表示正文文件不存在。
var ErrNotFound = errors.New("cache blob not found")

// ErrInvalidFilename 表示文件名不是缓存目录下的扁平文件名。
var ErrInvalidFilename = errors.New("invalid cache filename")
