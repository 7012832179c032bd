package index

// Entry 是索引中的一行：请求地址 → 正文文件 + 新鲜度标记。
type Entry struct {
	// URL 是最初请求的地址，也是索引的唯一键。
	URL string `json:"url"`
	// Filename 是缓存目录中的正文文件名。
	Filename string `json:"filename"`
	// LastModified 原样保存服务器返回的 Last-Modified，不做解析。
	LastModified string `json:"last_modified"`
	// RedirectURL 是跟随重定向后的最终地址，后续条件请求都发往这里。
	RedirectURL string `json:"redirect_url"`
}

// Header 是索引文件的列名，顺序固定。
var Header = []string{"url", "bestandsnaam", "laatste_wijziging", "redirect_url"}

func (e Entry) record() []string {
	return []string{e.URL, e.Filename, e.LastModified, e.RedirectURL}
}

func entryFromRecord(record []string) Entry {
	return Entry{
		URL:          record[0],
		Filename:     record[1],
		LastModified: record[2],
		RedirectURL:  record[3],
	}
}
