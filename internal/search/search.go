package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet"`
	Date    string   `json:"date"`
	Status  string   `json:"status"`
	Tags    []string `json:"tags"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterStatus string // empty = all statuses
	FilterTag    string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	URL        string   `json:"url"`
	Excerpt    string   `json:"excerpt"`
	Body       string   `json:"body"`
	Date       string   `json:"date"`
	Status     string   `json:"status"`
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
}
