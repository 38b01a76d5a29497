package pdftool

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange — включительный диапазон страниц, 1-indexed.
type PageRange struct {
	Start int
	End   int
}

func (r PageRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ParsePageRanges разбирает строку вида "1-3,5,7-9".
func ParsePageRanges(s string) ([]PageRange, error) {
	var ranges []PageRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var r PageRange
		if idx := strings.Index(part, "-"); idx >= 0 {
			start, err1 := strconv.Atoi(strings.TrimSpace(part[:idx]))
			end, err2 := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			r = PageRange{Start: start, End: end}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid page number %q", part)
			}
			r = PageRange{Start: n, End: n}
		}

		if r.Start < 1 {
			return nil, fmt.Errorf("pages are 1-indexed, got %d", r.Start)
		}
		if r.End < r.Start {
			return nil, fmt.Errorf("range %q ends before it starts", part)
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no page ranges in %q", s)
	}
	return ranges, nil
}

// ParsePageList разбирает "1,3,5" в список страниц.
func ParsePageList(s string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("pages are 1-indexed, got %d", n)
		}
		pages = append(pages, n)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages in %q", s)
	}
	return pages, nil
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// complementPages — страницы 1..total за вычетом deleted, по порядку.
func complementPages(total int, deleted []int) []int {
	drop := make(map[int]bool, len(deleted))
	for _, p := range deleted {
		drop[p] = true
	}
	var kept []int
	for p := 1; p <= total; p++ {
		if !drop[p] {
			kept = append(kept, p)
		}
	}
	return kept
}
