package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		values      []string
		expected    map[string]string
		expectedErr error
	}{
		{
			name:     "empty",
			expected: map[string]string{},
		},
		{
			name:     "pairs",
			values:   []string{"channel_id=1", "guild_id=2"},
			expected: map[string]string{"channel_id": "1", "guild_id": "2"},
		},
		{
			name:     "value containing equals",
			values:   []string{"q=a=b"},
			expected: map[string]string{"q": "a=b"},
		},
		{
			name:        "missing separator",
			values:      []string{"channel_id"},
			expectedErr: ErrInvalidParam,
		},
		{
			name:        "empty key",
			values:      []string{"=1"},
			expectedErr: ErrInvalidParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params, err := parseParams(tt.values)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, params)
		})
	}
}
