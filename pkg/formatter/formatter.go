package formatter

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout is how fetch times are shown on the terminal and in exports.
const TimeLayout = "2006-01-02 15:04"

// FormatNumber groups thousands with commas: 1234567 -> "1,234,567".
func FormatNumber(n int) string {
	digits := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	parts := []string{digits[:head]}
	for i := head; i < len(digits); i += 3 {
		parts = append(parts, digits[i:i+3])
	}
	return sign + strings.Join(parts, ",")
}

var markdownV2 = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`, "=", `\=`,
	"|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2.
func EscapeMarkdownV2(s string) string {
	return markdownV2.Replace(s)
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
// Post text is mostly CJK, so byte slicing would split characters.
func Truncate(s string, max int) string {
	switch {
	case max <= 0:
		return ""
	case utf8.RuneCountInString(s) <= max:
		return s
	case max == 1:
		return "…"
	}
	return string([]rune(s)[:max-1]) + "…"
}

// OneLine collapses newlines and runs of whitespace into single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Excerpt is post text flattened to one line and cut to max runes.
func Excerpt(s string, max int) string {
	return Truncate(OneLine(s), max)
}

// Timestamp renders t in loc, or fallback for the zero time.
func Timestamp(t time.Time, loc *time.Location, fallback string) string {
	if t.IsZero() {
		return fallback
	}
	return t.In(loc).Format(TimeLayout)
}
