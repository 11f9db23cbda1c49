package domain

import "fmt"

// ListingKey names the cached payload of one listing page.
func ListingKey(ticker string, page int, window DateWindow) string {
	return fmt.Sprintf("page_%d_%s_%s_%s.json", page, ticker, window.Begin, window.End)
}

// DetailKey names the cached raw detail page of a report.
func DetailKey(reportID string) string {
	return "detail_" + reportID + ".html"
}

// MetadataKey names the audit copy of the JSON object parsed out of a detail page.
func MetadataKey(reportID string) string {
	return "zwinfo_" + reportID + ".json"
}
