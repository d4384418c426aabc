package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Reading Rooms of 2024!", "reading-rooms-of-2024"},
		{"  --Already--slugged--  ", "already-slugged"},
		{"Café & Books", "café-books"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}

	long := Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len([]rune(long)), 80)
	assert.False(t, strings.HasSuffix(long, "-"))
}
