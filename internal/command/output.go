package command

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/papers"
	"github.com/orgball2608/xhs-likes-manager/internal/tagger"
	"github.com/orgball2608/xhs-likes-manager/pkg/formatter"
)

func PrintFetch(w io.Writer, s FetchSummary) {
	for _, r := range s.Results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case r.Capped:
			status = "stopped at the scroll limit, run again or raise fetch.max_scrolls"
		}
		fmt.Fprintf(w, "%-9s found %s, new %s, refreshed %s, skipped %d, scrolls %d (%s)\n",
			r.Kind.Collection(),
			formatter.FormatNumber(r.Found),
			formatter.FormatNumber(r.New),
			formatter.FormatNumber(r.Refreshed),
			r.Skipped, r.Scrolls, status)
	}
	for _, p := range s.Exported {
		fmt.Fprintf(w, "exported %s\n", p)
	}
}

func PrintTag(w io.Writer, r tagger.Result) {
	fmt.Fprintf(w, "tagged %d, unmatched %d, skipped %d\n", r.Tagged, r.Unmatched, r.Skipped)
}

func PrintStats(w io.Writer, s Stats) {
	for _, k := range s.Kinds {
		last := formatter.Timestamp(k.LastFetch, time.Local, "never")
		fmt.Fprintf(w, "%-9s total %s  untagged %d  tagged %d  reviewed %d  removed %d  last fetch %s\n",
			k.Kind.Collection(), formatter.FormatNumber(k.Total), k.Untagged, k.Tagged, k.Reviewed, k.Removed, last)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintln(w, "\ntags:")
		for _, t := range s.Tags {
			fmt.Fprintf(w, "  %-14s %d\n", t.Tag, t.Count)
		}
	}
	if len(s.Extraction) > 0 {
		fmt.Fprintln(w, "\npaper extraction:")
		for _, e := range s.Extraction {
			fmt.Fprintf(w, "  %-14s %d\n", e.Status, e.Count)
		}
	}
}

func PrintList(w io.Writer, records []domain.PostRecord) {
	for _, r := range records {
		marker := ""
		if r.IsRemoved() {
			marker = " [removed]"
		}
		fmt.Fprintf(w, "%s  %-8s %s%s\n", r.ID, r.Status, formatter.Excerpt(r.Title, 40), marker)
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "    tags: %s\n", strings.Join(r.Tags, ", "))
		}
		for _, ref := range r.PaperRefs {
			if link := ref.Link(); link != "" {
				fmt.Fprintf(w, "    paper: %s %s\n", link, ref.Title)
			} else {
				fmt.Fprintf(w, "    paper: %s\n", ref.Title)
			}
		}
	}
	fmt.Fprintf(w, "%d records\n", len(records))
}

func PrintExtract(w io.Writer, r papers.Result) {
	fmt.Fprintf(w, "processed %d, extracted %d, lookups %d, lookup failures %d, detail failures %d, skipped %d\n",
		r.Processed, r.Extracted, r.Lookups, r.LookupFailures, r.DetailFailures, r.Skipped)
}

func PrintUnlike(w io.Writer, s UnlikeSummary) {
	for _, id := range s.Unliked {
		fmt.Fprintf(w, "unliked %s\n", id)
	}
	for _, id := range s.Manual {
		fmt.Fprintf(w, "marked %s removed; unlike it manually on the site\n", id)
	}
	if len(s.Unliked) == 0 && len(s.Manual) == 0 {
		fmt.Fprintln(w, "nothing to unlike")
	}
}
