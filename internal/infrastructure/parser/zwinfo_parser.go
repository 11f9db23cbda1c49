package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"ReportHarvester/internal/domain"
	"ReportHarvester/internal/ports"
)

// zwinfoExpr matches the metadata object embedded in detail pages. It stops
// at the first "};" so nested objects ending that way are cut short, which
// the repair step below tolerates.
var zwinfoExpr = regexp.MustCompile(`(?s)var zwinfo\s*=\s*({.*?});`)

type zwinfo struct {
	AttachURL        string           `json:"attach_url"`
	NoticeTitle      string           `json:"notice_title"`
	ShortName        string           `json:"short_name"`
	NoticeDate       string           `json:"notice_date"`
	SourceSampleName string           `json:"source_sample_name"`
	AttachPages      domain.PageCount `json:"attach_pages"`
}

// ZwinfoParser extracts report metadata from the `var zwinfo = {...};`
// script block of a detail page.
type ZwinfoParser struct {
	artifacts ports.PayloadStore
	logger    *slog.Logger
}

var _ ports.DetailParser = (*ZwinfoParser)(nil)

// NewZwinfoParser stores the parsed object through artifacts when it is non-nil.
func NewZwinfoParser(artifacts ports.PayloadStore, log *slog.Logger) *ZwinfoParser {
	return &ZwinfoParser{artifacts: artifacts, logger: log}
}

// Parse returns nil, nil when the payload has no zwinfo marker.
func (p *ZwinfoParser) Parse(ctx context.Context, raw []byte, reportID string) (*domain.ReportDetail, error) {
	block := extractBlock(raw)
	if block == "" {
		p.debug("zwinfo marker not found", "report_id", reportID)
		return nil, nil
	}

	obj, err := p.decodeObject(block, reportID)
	if err != nil {
		return nil, domain.Transient("parse detail", fmt.Errorf("report %s: %w", reportID, err))
	}

	normalized, err := marshalIndent(obj)
	if err != nil {
		return nil, domain.Transient("parse detail", fmt.Errorf("report %s: %w", reportID, err))
	}

	var info zwinfo
	if err := json.Unmarshal(normalized, &info); err != nil {
		return nil, domain.Transient("parse detail", fmt.Errorf("report %s: map fields: %w", reportID, err))
	}

	if err := p.saveArtifact(ctx, reportID, normalized); err != nil {
		return nil, err
	}

	return &domain.ReportDetail{
		ReportID:         reportID,
		AttachURL:        strings.TrimSpace(info.AttachURL),
		NoticeTitle:      info.NoticeTitle,
		ShortName:        info.ShortName,
		NoticeDate:       info.NoticeDate,
		SourceSampleName: info.SourceSampleName,
		ExpectedPages:    info.AttachPages.Int(),
	}, nil
}

// saveArtifact leaves an identical stored copy untouched.
func (p *ZwinfoParser) saveArtifact(ctx context.Context, reportID string, normalized []byte) error {
	if p.artifacts == nil {
		return nil
	}
	key := domain.MetadataKey(reportID)
	if stored, err := p.artifacts.Get(ctx, key); err == nil && bytes.Equal(stored, normalized) {
		return nil
	}
	if err := p.artifacts.Put(ctx, key, normalized); err != nil {
		return fmt.Errorf("save zwinfo for %s: %w", reportID, err)
	}
	return nil
}

func (p *ZwinfoParser) decodeObject(block, reportID string) (map[string]any, error) {
	var obj map[string]any
	err := json.Unmarshal([]byte(block), &obj)
	if err == nil {
		return obj, nil
	}

	repaired, rerr := jsonrepair.RepairJSON(block)
	if rerr != nil {
		return nil, fmt.Errorf("decode zwinfo: %w", err)
	}
	if uerr := json.Unmarshal([]byte(repaired), &obj); uerr != nil || obj == nil {
		return nil, fmt.Errorf("decode zwinfo: %w", err)
	}
	p.warn("zwinfo needed repair", "report_id", reportID, "error", err)
	return obj, nil
}

// extractBlock looks inside <script> nodes first and falls back to the raw
// payload for documents the HTML parser cannot walk.
func extractBlock(raw []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw)); err == nil {
		var found string
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := zwinfoExpr.FindStringSubmatch(s.Text()); m != nil {
				found = m[1]
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if m := zwinfoExpr.FindSubmatch(raw); m != nil {
		return string(m[1])
	}
	return ""
}

func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (p *ZwinfoParser) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *ZwinfoParser) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
