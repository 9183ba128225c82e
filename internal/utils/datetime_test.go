package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T10:00:00Z", want},
		{"2024-01-01T10:00:00", want},
		{"2024-01-01T19:00:00+09:00", want},
		{"2024-01-01T19:00:00+0900", want},
		{"2024-01-01T05:30:00.000-0430", want},
		{"2024-01-01T19:00:00+09", want},
		{"2024-01-01 10:00:00", want},
		{"2024-01-01T10:00", want},
		{" 2024-01-01T10:00:00.000Z ", want},
		{"2024-01-01T10:00:00.5Z", want.Add(500 * time.Millisecond)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISO8601(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseISO8601Rejects(t *testing.T) {
	for _, in := range []string{"", "yesterday", "01/02/2024 10:00", "2024-13-01T10:00:00Z", "2024-01-01T25:00:00"} {
		_, err := ParseISO8601(in)
		assert.Error(t, err, in)
	}
}
