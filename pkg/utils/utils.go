package utils

import (
	"context"
	"runtime/debug"
	"strings"
	"unicode/utf8"
)

// ToPointer returns a pointer to the given value.
func ToPointer[T any](v T) *T {
	return &v
}

// GoSafe runs fn in a new goroutine and recovers from panics so a single
// worker cannot take down the process. The recovered value is handed to
// onPanic when provided.
func GoSafe(fn func(), onPanic func(r any, stack []byte)) {
	go func() {
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(r, debug.Stack())
			}
		}()
		fn()
	}()
}

// ShouldContinue reports whether the context is still live.
func ShouldContinue(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// CleanToValidUTF8 strips invalid UTF-8 sequences and NUL bytes.
func CleanToValidUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, '\x00') {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}
