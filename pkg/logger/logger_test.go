package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "production", Level: "info", Writer: &buf})

	log.WithComponent("Fetcher").Info("Fetched feed", "kind", "like", "new", 3)
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"component":"Fetcher"`)
	assert.Contains(t, out, `"kind":"like"`)
	assert.Contains(t, out, "Fetched feed")
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Opts{Env: "production", Level: "warn", Writer: &buf})

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
