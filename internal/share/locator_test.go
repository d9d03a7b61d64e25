package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShareURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3002/download/abc", ShareURL("http://localhost:3002/", "abc"))
	assert.Equal(t, "https://ezy.example/download/abc", ShareURL("https://ezy.example", "abc"))
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"3f2b9c1e-8a4d-4c5e-9f0a-1b2c3d4e5f60", "3f2b9c1e-8a4d-4c5e-9f0a-1b2c3d4e5f60"},
		{"  abc-123  ", "abc-123"},
		{"http://localhost:3002/download/abc-123", "abc-123"},
		{"https://ezy.example/download/abc-123?pin=123456", "abc-123"},
		{"/download/xyz", "xyz"},
		{"https://ezy.example/receive", "https://ezy.example/receive"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractID(tt.input), tt.input)
	}
}

func TestShareURLRoundTrip(t *testing.T) {
	for _, id := range []string{"abc", "3f2b9c1e-8a4d-4c5e-9f0a-1b2c3d4e5f60"} {
		assert.Equal(t, id, ExtractID(ShareURL("https://ezy.example/", id)))
	}
}
