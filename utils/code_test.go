// utils/code_test.go
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMatchCodeShape(t *testing.T) {
	code := NewMatchCode("pong")
	parts := strings.Split(code, "-")
	assert.Equal(t, "pong", parts[0])
	assert.Len(t, parts[len(parts)-1], 12)
}

func TestNewMatchCodeUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewMatchCode("checkers")
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNormalizeMatchCode(t *testing.T) {
	cases := map[string]string{
		"Café Rematch!":  "cafe-rematch",
		"CAFE rematch":   "cafe-rematch",
		"  pong-3fa9c2 ": "pong-3fa9c2",
		"Übung Macht":    "ubung-macht",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeMatchCode(in), "input %q", in)
	}
}
