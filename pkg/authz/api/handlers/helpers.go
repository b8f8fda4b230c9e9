package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// PageSize is the fixed number of results per page for list endpoints.
const PageSize = 10

// Page is the pagination envelope for list endpoints: a total count plus
// links to the adjacent pages. Next and Previous are null when there is no
// such page.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// paginate slices results into the requested page and builds the envelope.
// Pages are 1-based; an out-of-range page yields empty results.
func paginate[T any](r *http.Request, results []T) *Page {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	count := len(results)
	start := (page - 1) * PageSize
	end := start + PageSize
	if start > count {
		start = count
	}
	if end > count {
		end = count
	}

	envelope := &Page{
		Count:   count,
		Results: results[start:end],
	}

	if end < count {
		envelope.Next = pageURL(r, page+1)
	}
	if page > 1 {
		envelope.Previous = pageURL(r, page-1)
	}
	return envelope
}

// pageURL rebuilds the request URL with the page parameter replaced.
func pageURL(r *http.Request, page int) *string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
