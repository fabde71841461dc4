package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown kind", []string{"fetch", "stories"}, `unknown kind "stories"`},
		{"unlike needs target", []string{"unlike"}, "give a post id or --pending"},
		{"bad review mode", []string{"review", "--mode", "bogus"}, "unknown review mode"},
		{"list bad kind", []string{"list", "--kind", "x"}, `unknown kind "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute("-c", "/nonexistent/config.yaml", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestConfigDescribesEnv(t *testing.T) {
	out, err := execute("config")
	require.NoError(t, err)
	assert.Contains(t, out, "XHS_USER_ID")
}
