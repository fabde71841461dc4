package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapWithCode(t *testing.T) {
	base := stderrors.New("boom")
	err := WrapWithCode(base, CodeSessionExpired, "login required")

	assert.Equal(t, "login required: boom", err.Error())
	assert.ErrorIs(t, err, base)
	assert.True(t, IsSessionExpired(err))
}

func TestGetCodeThroughWrappers(t *testing.T) {
	inner := WrapWithCode(stderrors.New("bad json"), CodeStoreCorrupted, "decode store")
	outer := fmt.Errorf("load: %w", Wrap(inner, "open store"))

	assert.Equal(t, CodeStoreCorrupted, GetCode(outer))
	assert.True(t, IsStoreCorrupted(outer))
	assert.False(t, IsSessionExpired(outer))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "x"))
	assert.NoError(t, WrapWithCode(nil, CodeNavigation, "x"))
	assert.Empty(t, GetCode(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("post 1: %w", ErrNotFound)))
	assert.True(t, IsNotFound(WrapWithCode(stderrors.New("missing"), CodeNotFound, "post 1")))
	assert.False(t, IsNotFound(stderrors.New("other")))
}

func TestHint(t *testing.T) {
	expired := WrapWithCode(stderrors.New("no cookie"), CodeSessionExpired, "not logged in")
	assert.Contains(t, Hint(fmt.Errorf("fetch likes: %w", expired)), "xhs login")

	corrupt := WrapWithCode(stderrors.New("eof"), CodeStoreCorrupted, "decode")
	assert.Contains(t, Hint(corrupt), "--reinit-store")

	assert.Empty(t, Hint(stderrors.New("plain")))
	assert.Empty(t, Hint(nil))
}
