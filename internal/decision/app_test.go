package decision

import (
	"testing"

	"github.com/lekbanken/playserver/internal/models"
	"github.com/stretchr/testify/require"
)

func options(pairs ...string) []models.DecisionOption {
	opts := make([]models.DecisionOption, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		opts = append(opts, models.DecisionOption{Key: pairs[i], Label: pairs[i+1]})
	}
	return opts
}

func Test_ValidateOptions(t *testing.T) {
	cases := []struct {
		name    string
		options []models.DecisionOption
		wantErr string
	}{
		{"valid pair", options("a", "Yes", "b", "No"), ""},
		{"valid many", options("a", "Rock", "b", "Paper", "c", "Scissors"), ""},
		{"empty set", nil, "at least two"},
		{"single option", options("a", "Only"), "at least two"},
		{"empty key", options("", "Yes", "b", "No"), "empty key"},
		{"empty label", options("a", "", "b", "No"), "empty label"},
		{"duplicate keys", options("a", "Yes", "a", "No"), "duplicate option key"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOptions(tc.options)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
