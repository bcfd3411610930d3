package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/chirino/messaging-service/internal/registry/store"
)

const (
	PageParam     = "page"
	PageSizeParam = "page_size"
)

// PageSpec holds the default and maximum page size of a listing.
type PageSpec struct {
	DefaultSize int
	MaxSize     int
}

// PageRequest is the page window a caller asked for after clamping.
type PageRequest struct {
	Number int
	Size   int
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParsePage reads page and page_size. An invalid page is a validation error;
// an invalid or non-positive page_size falls back to the default and an
// oversized one is clamped to the maximum.
func ParsePage(values url.Values, spec PageSpec) (PageRequest, error) {
	req := PageRequest{Number: 1, Size: spec.DefaultSize}
	if raw := strings.TrimSpace(values.Get(PageParam)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return PageRequest{}, &store.ValidationError{Field: PageParam, Message: "must be a positive integer"}
		}
		req.Number = n
	}
	if raw := strings.TrimSpace(values.Get(PageSizeParam)); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			req.Size = n
		}
	}
	if spec.MaxSize > 0 && req.Size > spec.MaxSize {
		req.Size = spec.MaxSize
	}
	return req, nil
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Count       int64   `json:"count"`
	Next        *string `json:"next"`
	Previous    *string `json:"previous"`
	TotalPages  int64   `json:"total_pages"`
	CurrentPage int     `json:"current_page"`
	PageSize    int     `json:"page_size"`
	Results     []T     `json:"results"`
}

// NewPage builds the envelope for one page of results. base is the absolute
// URL of the current request; next and previous links copy it with the page
// parameter adjusted. A nil base leaves both links null.
func NewPage[T any](results []T, count int64, req PageRequest, base *url.URL) Page[T] {
	if results == nil {
		results = []T{}
	}
	size := int64(req.Size)
	var totalPages int64
	if size > 0 {
		totalPages = (count + size - 1) / size
	}
	page := Page[T]{
		Count:       count,
		TotalPages:  totalPages,
		CurrentPage: req.Number,
		PageSize:    req.Size,
		Results:     results,
	}
	if base != nil {
		if int64(req.Number) < totalPages {
			page.Next = pageLink(base, req.Number+1)
		}
		if req.Number > 1 && totalPages > 0 {
			prev := req.Number - 1
			if int64(prev) > totalPages {
				prev = int(totalPages)
			}
			page.Previous = pageLink(base, prev)
		}
	}
	return page
}

func pageLink(base *url.URL, number int) *string {
	u := *base
	values := u.Query()
	if number == 1 {
		values.Del(PageParam)
	} else {
		values.Set(PageParam, strconv.Itoa(number))
	}
	u.RawQuery = values.Encode()
	s := u.String()
	return &s
}
