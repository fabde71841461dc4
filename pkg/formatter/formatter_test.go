package formatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:        "0",
		7:        "7",
		999:      "999",
		1000:     "1,000",
		12345:    "12,345",
		100000:   "100,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
		-999:     "-999",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in), "input %d", in)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `AI/LLM \(12\)\. fetched\!`, EscapeMarkdownV2("AI/LLM (12). fetched!"))
	assert.Equal(t, `likes: \+3 new`, EscapeMarkdownV2("likes: +3 new"))
	assert.Equal(t, `a\\b`, EscapeMarkdownV2(`a\b`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "大模型推理", Truncate("大模型推理", 5))
	assert.Equal(t, "大模型推…", Truncate("大模型推理论文", 5))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", OneLine("a\n b \t\tc\n"))
	assert.Equal(t, "第一行 …", Excerpt("第一行\n第二行", 5))
}

func TestTimestamp(t *testing.T) {
	cst := time.FixedZone("CST", 8*60*60)
	at := time.Date(2026, 3, 1, 16, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-02 00:30", Timestamp(at, cst, "N/A"))
	assert.Equal(t, "N/A", Timestamp(time.Time{}, cst, "N/A"))
}
