package domain

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Ticker is one entry of the harvest universe.
type Ticker struct {
	Code string
	Name string
}

// String renders the ticker for log lines.
func (t Ticker) String() string {
	if t.Name == "" {
		return t.Code
	}
	return t.Code + " " + t.Name
}

// PageCount decodes page counts that the provider sends as numbers, numeric
// strings, empty strings or null. Anything non-numeric becomes zero.
type PageCount int

// UnmarshalJSON implements json.Unmarshaler.
func (p *PageCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*p = 0
			return nil
		}
		raw = s
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		if f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64); ferr == nil {
			*p = PageCount(int(f))
			return nil
		}
		*p = 0
		return nil
	}
	*p = PageCount(n)
	return nil
}

// Int returns the count as a plain int.
func (p PageCount) Int() int {
	return int(p)
}

// ReportSummary is one entry from a listing page.
type ReportSummary struct {
	ID           string          `json:"infoCode"`
	Title        string          `json:"title"`
	AttachPages  PageCount       `json:"attachPages"`
	OrgShortName string          `json:"orgSName,omitempty"`
	PublishDate  string          `json:"publishDate,omitempty"`
	EmRatingName string          `json:"emRatingName,omitempty"`
	SRatingName  string          `json:"sRatingName,omitempty"`
	RatingChange json.RawMessage `json:"ratingChange,omitempty"`
}

// ListingPage is the decoded form of one cached listing response.
type ListingPage struct {
	Ticker     string          `json:"-"`
	Page       int             `json:"-"`
	Window     DateWindow      `json:"-"`
	TotalPages int             `json:"TotalPage"`
	TotalHits  int             `json:"hits"`
	Reports    []ReportSummary `json:"data"`
}

// DateWindow bounds the listing query, formatted as YYYY-MM-DD.
type DateWindow struct {
	Begin string
	End   string
}

const windowLayout = "2006-01-02"

// WindowYearsBack returns the window ending at now and reaching back
// 365*years days.
func WindowYearsBack(now time.Time, years int) DateWindow {
	begin := now.AddDate(0, 0, -365*years)
	return DateWindow{
		Begin: begin.Format(windowLayout),
		End:   now.Format(windowLayout),
	}
}

// ReportDetail is the metadata resolved from one detail payload.
type ReportDetail struct {
	ReportID         string
	AttachURL        string
	NoticeTitle      string
	ShortName        string
	NoticeDate       string
	SourceSampleName string
	ExpectedPages    int
}

// DownloadTarget is where a report PDF lives on disk.
type DownloadTarget struct {
	Dir      string
	Filename string
	Deep     bool
}

// Path joins Dir and Filename.
func (t DownloadTarget) Path() string {
	return filepath.Join(t.Dir, t.Filename)
}
