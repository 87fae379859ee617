package search

// Result is a single invitation hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
	Theme   string `json:"theme"`
}

// Query describes a search request over invitations.
type Query struct {
	Text          string
	FilterOwnerID string
	FilterStatus  string
	Limit         int
	Offset        int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// InvitationRecord is the data we index for an invitation.
type InvitationRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
	Theme   string `json:"theme"`
}
