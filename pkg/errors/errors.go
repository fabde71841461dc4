package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Code classifies a failure for the command line: it picks the hint shown
// to the user.
type Code string

const (
	CodeSessionExpired Code = "session_expired"
	CodeNavigation     Code = "navigation_failure"
	CodeStoreCorrupted Code = "store_corrupted"
	CodeNotFound       Code = "not_found"
	CodeConfig         Code = "config"
)

// Error is a failure annotated with what was being done and, optionally, a Code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap annotates err without classifying it.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

func WrapWithCode(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// GetCode returns the outermost code in the chain, skipping uncoded wrappers.
func GetCode(err error) Code {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Code != "" {
			return e.Code
		}
		err = e.Err
	}
	return ""
}

func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || HasCode(err, CodeNotFound)
}

// IsSessionExpired reports whether the user has to log in again.
func IsSessionExpired(err error) bool {
	return HasCode(err, CodeSessionExpired)
}

// IsStoreCorrupted reports whether the record store file could not be parsed.
func IsStoreCorrupted(err error) bool {
	return HasCode(err, CodeStoreCorrupted)
}

// Hint is the follow-up advice printed under a failed command, or "".
func Hint(err error) string {
	switch GetCode(err) {
	case CodeSessionExpired:
		return "The browser session is not logged in. Run `xhs login` first."
	case CodeStoreCorrupted:
		return "Run again with --reinit-store to move the broken file aside and start empty."
	case CodeNavigation:
		return "The page did not load. Check the network or raise browser.navigation_timeout."
	case CodeNotFound:
		return "Use `xhs list` to see the stored post ids."
	case CodeConfig:
		return "Run `xhs config` to see the supported settings."
	}
	return ""
}
