package papers

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	arxivIDPattern = regexp.MustCompile(`\d{4}\.\d{4,5}(?:v\d+)?`)
	versionSuffix  = regexp.MustCompile(`v\d+$`)

	quotedTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`《([^《》]{5,100})》`),
		regexp.MustCompile(`“([^“”]{5,100})”`),
		regexp.MustCompile(`"([^"]{5,100})"`),
	}
	markedTitlePattern = regexp.MustCompile(`(?i)(?:题目|paper|论文|title)\s*[：:]\s*([^\n]{10,120})`)

	paperHints = []string{"arxiv", "论文", "paper", "题目：", "一句话总结"}
)

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ExtractArxivIDs finds new-style arXiv ids that are not part of a longer
// number, drops version suffixes and dedupes in order of first appearance.
func ExtractArxivIDs(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, loc := range arxivIDPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && (isDigit(text[start-1]) || text[start-1] == '.') {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		id := versionSuffix.ReplaceAllString(text[start:end], "")
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type titleHit struct {
	pos   int
	title string
}

// ExtractTitles returns quoted titles and titles following a 题目/paper/论文/
// Title marker, in order of appearance, deduped.
func ExtractTitles(text string) []string {
	var hits []titleHit
	for _, re := range quotedTitlePatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			hits = append(hits, titleHit{pos: m[0], title: text[m[2]:m[3]]})
		}
	}
	for _, m := range markedTitlePattern.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, titleHit{pos: m[0], title: text[m[2]:m[3]]})
	}

	// stable insertion sort; a handful of hits at most
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, h := range hits {
		t := strings.TrimSpace(h.title)
		if utf8.RuneCountInString(t) < 5 {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// LooksLikePaper reports whether a post talks about a paper at all.
func LooksLikePaper(text string, ids, titles []string) bool {
	if len(ids) > 0 || len(titles) > 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, hint := range paperHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
