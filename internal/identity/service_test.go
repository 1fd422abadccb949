package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePattern(t *testing.T) {
	valid := []string{
		"alice",
		"bob_99",
		"first.last",
		"with-dash",
		"abc",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 32 chars
	}
	for _, h := range valid {
		assert.True(t, handlePattern.MatchString(h), "expected %q to be accepted", h)
	}

	invalid := []string{
		"",
		"ab",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 33 chars
		"has space",
		"emoji❤",
		"slash/name",
		"at@sign",
	}
	for _, h := range invalid {
		assert.False(t, handlePattern.MatchString(h), "expected %q to be rejected", h)
	}
}
