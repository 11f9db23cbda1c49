// Package layout derives where a report PDF is stored. The same detail always
// maps to the same path.
package layout

import (
	"path/filepath"
	"strings"

	"ReportHarvester/internal/domain"
)

const (
	// DeepReportDir holds reports with at least DeepReportPages pages.
	DeepReportDir   = "深度报告"
	DeepReportPages = 10
)

// ComputeTarget maps a report detail to its directory and filename under root.
func ComputeTarget(root string, d domain.ReportDetail) domain.DownloadTarget {
	title := sanitize(d.NoticeTitle)
	short := sanitize(d.ShortName)
	source := sanitize(d.SourceSampleName)

	parts := []string{compactDate(d.NoticeDate)}
	if source != "" && !strings.Contains(title, source) {
		parts = append(parts, source)
	}
	if short != "" && !strings.Contains(title, short) {
		parts = append(parts, short)
	}
	parts = append(parts, title)

	deep := d.ExpectedPages >= DeepReportPages
	dir := filepath.Join(root, short)
	if deep {
		dir = filepath.Join(dir, DeepReportDir)
	}

	return domain.DownloadTarget{
		Dir:      dir,
		Filename: strings.Join(parts, "_") + ".pdf",
		Deep:     deep,
	}
}

// compactDate keeps YYYYMMDD from dates such as "2024-01-05 00:00:00".
func compactDate(date string) string {
	date = strings.NewReplacer("-", "", "/", "").Replace(date)
	if r := []rune(date); len(r) > 8 {
		date = string(r[:8])
	}
	return date
}

func sanitize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
}
