package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"forge.example.com", "*.spec.example.com", "localhost:*"}

	assert.True(t, originAllowed(patterns, "https://forge.example.com"))
	assert.True(t, originAllowed(patterns, "https://ui.spec.example.com"))
	assert.True(t, originAllowed(patterns, "http://localhost:5173"))
	assert.True(t, originAllowed(patterns, "http://localhost:3000"))

	assert.False(t, originAllowed(patterns, "https://evil.example.com"))
	assert.False(t, originAllowed(patterns, "https://forge.example.com.evil.net"))
	assert.False(t, originAllowed(nil, "https://forge.example.com"))
}
