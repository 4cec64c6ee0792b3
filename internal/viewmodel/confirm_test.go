package viewmodel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			c := PromptConfirmer(strings.NewReader(tt.input), &out)

			require.Equal(t, tt.want, c.Confirm("Delete it?"))
			require.True(t, strings.HasPrefix(out.String(), "Delete it? [y/N] "))
		})
	}
}

func TestPromptConfirmer_NilReader(t *testing.T) {
	var out bytes.Buffer
	require.False(t, PromptConfirmer(nil, &out).Confirm("Delete it?"))
	require.Empty(t, out.String())
}

func TestStateView(t *testing.T) {
	var st State
	require.Equal(t, ViewAuthForm, st.View())
	require.Equal(t, "auth", st.View().String())
	require.False(t, st.CanDelete())
}
