package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserIDs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int64
	}{
		{"empty", "", nil},
		{"single", "42", []int64{42}},
		{"several with spaces", " 3, 5 ,8", []int64{3, 5, 8}},
		{"skips junk", "1,abc,,2", []int64{1, 2}},
		{"all junk", "x, y", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseUserIDs(tt.input))
		})
	}
}
