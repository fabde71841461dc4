package domain

import "fmt"

type PaperSource string

const (
	PaperSourceRegex     PaperSource = "regex"
	PaperSourceAPILookup PaperSource = "api-lookup"
)

// PaperRef points at an academic paper mentioned by a post.
type PaperRef struct {
	ArxivID string      `json:"arxiv_id,omitempty"`
	Title   string      `json:"title,omitempty"`
	Source  PaperSource `json:"source"`
}

// Link returns the arXiv abstract page, or "" for title-only references.
func (r PaperRef) Link() string {
	if r.ArxivID == "" {
		return ""
	}
	return fmt.Sprintf("https://arxiv.org/abs/%s", r.ArxivID)
}

// ExtractionStatus summarises what paper extraction found for a record.
type ExtractionStatus string

const (
	ExtractionNone        ExtractionStatus = ""
	ExtractionExtracted   ExtractionStatus = "extracted"
	ExtractionNeedsVision ExtractionStatus = "needs_vision"
	ExtractionNoIDFound   ExtractionStatus = "no_id_found"
	ExtractionInsight     ExtractionStatus = "insight"
)
