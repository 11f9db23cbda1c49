// Package universe loads the list of tickers to harvest.
package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ReportHarvester/internal/domain"
)

var (
	codeHeaders = []string{"股票代码", "code", "ticker"}
	nameHeaders = []string{"股票简称", "name"}
)

// LoadCSV reads a ticker universe file such as an index constituent export.
func LoadCSV(path string) ([]domain.Ticker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe %s: %w", path, err)
	}
	defer f.Close()

	tickers, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read universe %s: %w", path, err)
	}
	return tickers, nil
}

// ReadCSV parses a CSV with a header row. Codes are kept as text so leading
// zeros survive; rows without a code are skipped.
func ReadCSV(r io.Reader) ([]domain.Ticker, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	codeCol, nameCol := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if codeCol < 0 && contains(codeHeaders, h) {
			codeCol = i
		}
		if nameCol < 0 && contains(nameHeaders, h) {
			nameCol = i
		}
	}
	if codeCol < 0 {
		return nil, fmt.Errorf("no code column in header %v", header)
	}

	var tickers []domain.Ticker
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row: %w", err)
		}

		t := domain.Ticker{Code: field(record, codeCol), Name: field(record, nameCol)}
		if t.Code == "" {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// ParseTicker reads the CODE[:NAME] form used on the command line.
func ParseTicker(s string) (domain.Ticker, error) {
	code, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Ticker{}, fmt.Errorf("ticker %q: empty code", s)
	}
	return domain.Ticker{Code: code, Name: strings.TrimSpace(name)}, nil
}

// Merge concatenates lists keeping the first occurrence of every code.
func Merge(lists ...[]domain.Ticker) []domain.Ticker {
	seen := map[string]bool{}
	var out []domain.Ticker
	for _, list := range lists {
		for _, t := range list {
			if seen[t.Code] {
				continue
			}
			seen[t.Code] = true
			out = append(out, t)
		}
	}
	return out
}

func field(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
