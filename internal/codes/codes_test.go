package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     bool
	}{
		{
			name:     "exit code 0 is success",
			exitCode: 0,
			want:     true,
		},
		{
			name:     "exit code 1 is failure",
			exitCode: 1,
			want:     false,
		},
		{
			name:     "segfault is failure",
			exitCode: 139,
			want:     false,
		},
		{
			name:     "signal exit is failure",
			exitCode: -1,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSuccess(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsSegfault(t *testing.T) {
	assert.True(t, IsSegfault(139))
	assert.False(t, IsSegfault(134))
	assert.False(t, IsSegfault(0))
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		want     string
	}{
		{
			name:     "exit code 0",
			exitCode: 0,
			want:     "Success",
		},
		{
			name:     "exit code 1",
			exitCode: 1,
			want:     "General failure",
		},
		{
			name:     "exit code 127 - command not found",
			exitCode: 127,
			want:     "Command not found",
		},
		{
			name:     "exit code 139 - segfault",
			exitCode: 139,
			want:     "Segmentation fault (SIGSEGV)",
		},
		{
			name:     "unknown exit code",
			exitCode: 999,
			want:     "Unknown error",
		},
		{
			name:     "negative exit code",
			exitCode: -1,
			want:     "Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetErrorMessage(tt.exitCode)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorCodes_Coverage(t *testing.T) {
	// Verify all error codes in the map are accessible
	knownCodes := []int{0, 1, 2, 124, 126, 127, 130, 134, 137, 139, 143}

	for _, code := range knownCodes {
		msg := GetErrorMessage(code)
		assert.NotEqual(t, "Unknown error", msg, "Code %d should have a message", code)
		assert.NotEmpty(t, msg, "Code %d should have a non-empty message", code)
	}

	assert.Len(t, ErrorCodes, len(knownCodes))
}
