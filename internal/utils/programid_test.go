package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramID(t *testing.T) {
	tests := []struct {
		input  string
		wantID int
		wantOK bool
	}{
		{"function550013", 550013, true},
		{"550013", 550013, true},
		{"function_blur_MINI", 0, false},
		{"function_0", 0, true},
		{"f12x", 0, false},
		{"", 0, false},
		{"function99999999999999999999999", 0, false},
	}

	for _, test := range tests {
		id, ok := ProgramID(test.input)
		assert.Equal(t, test.wantOK, ok, "ProgramID(%q)", test.input)
		assert.Equal(t, test.wantID, id, "ProgramID(%q)", test.input)
	}
}
