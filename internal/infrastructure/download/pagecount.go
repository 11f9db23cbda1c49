package download

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func init() {
	// pdfcpu keeps its configuration in memory instead of under the user config dir.
	api.DisableConfigDir()
}

// PageCounter reports how many pages a downloaded document has.
type PageCounter interface {
	CountPages(path string) (int, error)
}

// PDFPageCounter reads the page tree with pdfcpu.
type PDFPageCounter struct{}

var _ PageCounter = PDFPageCounter{}

// CountPages implements PageCounter.
func (PDFPageCounter) CountPages(path string) (n int, err error) {
	// pdfcpu can panic on badly truncated input; treat that as unreadable.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	n, err = api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf %s: %w", path, err)
	}
	return n, nil
}

// PageCounterFunc adapts a function to PageCounter.
type PageCounterFunc func(path string) (int, error)

// CountPages implements PageCounter.
func (f PageCounterFunc) CountPages(path string) (int, error) {
	return f(path)
}
