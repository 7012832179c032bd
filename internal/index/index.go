package index

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/thuisdata/thuis/internal/logging"
)

const (
	// FileName 是缓存目录中索引文件的名称。
	FileName = "index.csv"
	// Delimiter 是索引文件的列分隔符。
	Delimiter = ';'
)

// Index 是缓存索引的句柄。每次操作都完整读取文件，每次修改都完整重写文件；
// 假定同一时间只有一个进程访问缓存目录。
type Index struct {
	dir    string
	path   string
	logger *logrus.Logger
}

// Open 绑定缓存目录并确保目录与索引文件存在。
func Open(dir string, logger *logrus.Logger) (*Index, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	idx := &Index{
		dir:    abs,
		path:   filepath.Join(abs, FileName),
		logger: logger,
	}
	if _, err := idx.EnsureInitialized(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Path 返回索引文件的绝对路径。
func (x *Index) Path() string {
	return x.path
}

// EnsureInitialized 在缓存目录或索引文件缺失时创建它们（索引只含表头），可重复调用。
func (x *Index) EnsureInitialized() (string, error) {
	if _, err := os.Stat(x.dir); errors.Is(err, fs.ErrNotExist) {
		x.logger.WithFields(logrus.Fields{"action": "index_init", "dir": x.dir}).Debug("cache_dir_created")
	}
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	info, err := os.Stat(x.path)
	switch {
	case err == nil:
		if info.IsDir() {
			return "", &FormatError{Path: x.path, Reason: "index path is a directory"}
		}
		return x.path, nil
	case errors.Is(err, fs.ErrNotExist):
		if err := x.rewrite(nil); err != nil {
			return "", err
		}
		x.logger.WithFields(logrus.Fields{"action": "index_init", "path": x.path}).Debug("index_created")
		return x.path, nil
	default:
		return "", err
	}
}

// LoadAll 读取并解析全部记录，保持文件中的顺序。
func (x *Index) LoadAll() ([]Entry, error) {
	path, err := x.EnsureInitialized()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FormatError{Path: path, Reason: "missing header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if !sameHeader(header) {
		return nil, &FormatError{Path: path, Line: 1, Reason: fmt.Sprintf("unexpected header %q", header)}
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		if len(record) != len(Header) {
			line, _ := reader.FieldPos(0)
			return nil, &FormatError{
				Path:   path,
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(Header), len(record)),
			}
		}
		entries = append(entries, entryFromRecord(record))
	}
	return entries, nil
}

// Find 线性扫描索引，返回第一条（也应是唯一一条）URL 匹配的记录。
func (x *Index) Find(url string) (Entry, bool, error) {
	entries, err := x.LoadAll()
	if err != nil {
		return Entry{}, false, err
	}
	for _, entry := range entries {
		if entry.URL == url {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// Insert 追加一条新记录；URL 已存在时返回 *DuplicateKeyError。
func (x *Index) Insert(entry Entry) error {
	if entry.URL == "" || entry.Filename == "" {
		return errors.New("index entry requires url and filename")
	}

	entries, err := x.LoadAll()
	if err != nil {
		return err
	}
	for _, existing := range entries {
		if existing.URL == entry.URL {
			return &DuplicateKeyError{URL: entry.URL}
		}
	}

	entries = append(entries, entry)
	return x.rewrite(entries)
}

// Update 修改已有记录的可变字段（LastModified、RedirectURL）并重写索引。
// URL 与 Filename 不可变；匹配数不为 1 时返回 *ConsistencyError。
func (x *Index) Update(entry Entry) error {
	entries, err := x.LoadAll()
	if err != nil {
		return err
	}

	matched := -1
	count := 0
	for i := range entries {
		if entries[i].URL == entry.URL {
			matched = i
			count++
		}
	}
	if count != 1 {
		return &ConsistencyError{URL: entry.URL, Matches: count}
	}

	entries[matched].LastModified = entry.LastModified
	entries[matched].RedirectURL = entry.RedirectURL
	return x.rewrite(entries)
}

// rewrite 将完整记录写入同目录临时文件，flush + sync + close 成功后再 rename 覆盖索引；
// 任一步失败都会删除临时文件，原索引保持不变。
func (x *Index) rewrite(entries []Entry) (err error) {
	tempFile, err := os.CreateTemp(x.dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	tempName := tempFile.Name()
	defer func() {
		if err != nil {
			tempFile.Close()
			os.Remove(tempName)
		}
	}()

	writer := csv.NewWriter(tempFile)
	writer.Comma = Delimiter
	writer.UseCRLF = true

	if err = writer.Write(Header); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	for _, entry := range entries {
		if err = writer.Write(entry.record()); err != nil {
			return fmt.Errorf("write index record %s: %w", entry.URL, err)
		}
	}
	writer.Flush()
	if err = writer.Error(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	if err = tempFile.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err = os.Rename(tempName, x.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func sameHeader(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i := range Header {
		if header[i] != Header[i] {
			return false
		}
	}
	return true
}
