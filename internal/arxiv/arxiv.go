package arxiv

import (
	"context"
	"errors"
)

var ErrLookup = errors.New("arxiv lookup failed")

// Paper is one search hit. ID carries no version suffix.
type Paper struct {
	ID    string
	Title string
}

type Client interface {
	// Search queries arXiv for query and returns at most maxResults papers
	// in relevance order.
	Search(ctx context.Context, query string, maxResults int) ([]Paper, error)
}
