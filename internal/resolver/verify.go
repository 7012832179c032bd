package resolver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/thuisdata/thuis/internal/index"
)

// Report 汇总索引与正文目录之间的一致性检查结果。只报告，不修复。
type Report struct {
	Entries  int           `json:"entries"`
	Blobs    int           `json:"blobs"`
	Dangling []index.Entry `json:"dangling"`
	Orphans  []string      `json:"orphans"`
}

// Consistent 在没有悬空记录时为 true；孤立文件不影响正确性，只作提示。
func (r Report) Consistent() bool {
	return len(r.Dangling) == 0
}

// Verify 找出指向不存在正文的索引记录，以及没有任何记录引用的正文文件。
func (r *Resolver) Verify(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.index.LoadAll()
	if err != nil {
		return Report{}, fmt.Errorf("load index: %w", err)
	}
	blobs, err := r.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list blobs: %w", err)
	}

	present := make(map[string]struct{}, len(blobs))
	for _, name := range blobs {
		present[name] = struct{}{}
	}
	referenced := make(map[string]struct{}, len(entries))

	report := Report{Entries: len(entries), Blobs: len(blobs)}
	for _, entry := range entries {
		referenced[entry.Filename] = struct{}{}
		if _, ok := present[entry.Filename]; !ok {
			report.Dangling = append(report.Dangling, entry)
		}
	}
	for _, name := range blobs {
		if _, ok := referenced[name]; !ok {
			report.Orphans = append(report.Orphans, name)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"action":   "verify",
		"entries":  report.Entries,
		"blobs":    report.Blobs,
		"dangling": len(report.Dangling),
		"orphans":  len(report.Orphans),
	}).Info("verify_complete")
	return report, nil
}
