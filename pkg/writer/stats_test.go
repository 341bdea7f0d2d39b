package writer

import (
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "ErrQueueFull",
			err:      ErrQueueFull,
			expected: "writer: queue full, write dropped",
		},
		{
			name:     "ErrWriterClosed",
			err:      ErrWriterClosed,
			expected: "writer: mirror is closed",
		},
		{
			name:     "ErrFlushTimeout",
			err:      ErrFlushTimeout,
			expected: "writer: flush timeout exceeded",
		},
		{
			name:     "ErrMirrorIncomplete",
			err:      ErrMirrorIncomplete,
			expected: "writer: mirror incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, tt.err.Error())
			}
		})
	}
}
